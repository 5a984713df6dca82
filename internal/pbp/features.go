package pbp

import (
	"context"
	"fmt"

	"github.com/fortuna/gridiron/internal/winprob"
)

// GameSource supplies everything known about one box score.
type GameSource interface {
	GameMetadata(ctx context.Context, boxscoreID string) (GameMetadata, error)
	PlayTable(ctx context.Context, boxscoreID string) (PlayTable, error)
	Roster(ctx context.Context, boxscoreID string) (Roster, error)
}

// TeamNameResolver maps a season to its team directory.
type TeamNameResolver interface {
	TeamNames(ctx context.Context, season int) (TeamDirectory, error)
}

// Assembler builds the annotated play list of a game.
type Assembler struct {
	source GameSource
	teams  TeamNameResolver
}

func NewAssembler(source GameSource, teams TeamNameResolver) *Assembler {
	return &Assembler{source: source, teams: teams}
}

// BuildGameFeatureSet fetches one game and annotates every play. Unparseable
// plays, unknown possession and a failed team lookup degrade the affected
// fields; only a failure to load the game itself is returned as an error.
func (a *Assembler) BuildGameFeatureSet(ctx context.Context, boxscoreID string) (*GameFeatureSet, error) {
	meta, err := a.source.GameMetadata(ctx, boxscoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game metadata for %s: %w", boxscoreID, err)
	}

	table, err := a.source.PlayTable(ctx, boxscoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load play table for %s: %w", boxscoreID, err)
	}

	roster, err := a.source.Roster(ctx, boxscoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for %s: %w", boxscoreID, err)
	}

	var directory TeamDirectory
	lookupMissed := false
	if a.teams != nil {
		directory, err = a.teams.TeamNames(ctx, meta.Season)
		if err != nil {
			lookupMissed = true
		}
	}

	fs := Assemble(meta, table, roster, directory)
	if lookupMissed {
		fs.Report.TeamLookupMissed = true
	}
	return &fs, nil
}

// Assemble runs the whole pipeline over one game's rows, which must be in
// game order.
func Assemble(meta GameMetadata, table PlayTable, roster Roster, directory TeamDirectory) GameFeatureSet {
	nctx := NormalizeContext{BoxscoreID: meta.BoxscoreID, Season: meta.Season, Teams: directory}

	plays := make([]NormalizedPlay, len(table.Plays))
	for i, raw := range table.Plays {
		plays[i] = Normalize(raw, Classify(raw.Description), nctx)
	}

	teams := GameTeams{Home: meta.HomeTeamID, Away: meta.AwayTeamID}
	for i, pos := range TrackPossession(plays, teams, roster) {
		p := &plays[i]
		p.Possession = pos
		p.FieldSide = resolveFieldSide(p)
		if fumbleLost(p, teams, roster) {
			p.Fumble.IsLost = true
			if !p.IsNoPlay {
				p.IsTurnover = true
			}
		}
	}

	steps := make([]winprob.Step, len(plays))
	for i := range plays {
		steps[i] = winprob.Step{
			Margin:              float64(plays[i].HomeScore - plays[i].AwayScore),
			SecondsElapsed:      plays[i].ElapsedSeconds,
			ExpectedPointsShift: homeExpectedPoints(&plays[i], meta.HomeTeamID),
			PassThrough:         plays[i].Category == CategoryTimeout || plays[i].IsPossessionExempt,
		}
	}
	final := winprob.FinalWinProbability(meta.FinalHomeScore, meta.FinalAwayScore)
	points := winprob.Timeline(meta.PointSpread, steps, final)

	report := BuildReport{BoxscoreID: meta.BoxscoreID, Plays: len(plays), SkippedRows: len(table.RowErrors)}
	records := make([]PlayRecord, len(plays))
	for i := range plays {
		rec := PlayRecord{
			NormalizedPlay:          plays[i],
			Index:                   i,
			HomeTeamID:              meta.HomeTeamID,
			AwayTeamID:              meta.AwayTeamID,
			HomeWinProbability:      points[i].HomeWinProbability,
			HomeWinProbabilityAdded: points[i].HomeWinProbabilityAdded,
			DistanceToGoal:          distanceToGoal(&plays[i]),
		}
		deriveTeamRelative(&rec)
		records[i] = rec

		switch {
		case rec.IsPossessionExempt:
			report.PossessionExempt++
		case !rec.Possession.Known():
			report.UnknownPossession++
		}
		if rec.IsError && !rec.IsPossessionExempt {
			report.Unrecognized++
		}
		if rec.Timeout != nil && rec.Timeout.TeamID == "" {
			report.TeamLookupMissed = true
		}
	}
	if report.Plays > 0 {
		report.UnrecognizedRate = float64(report.Unrecognized) / float64(report.Plays)
	}

	return GameFeatureSet{Game: meta, Plays: records, Report: report}
}

// homeExpectedPoints signs the offense's expected points toward the home team.
func homeExpectedPoints(p *NormalizedPlay, home string) float64 {
	if p.ExpPtsBefore == nil || !p.Possession.Known() {
		return 0
	}
	if p.Possession.Offense == home {
		return *p.ExpPtsBefore
	}
	return -*p.ExpPtsBefore
}

// distanceToGoal is measured from the offense's point of view. Conversion
// tries are snapped from the 2.
func distanceToGoal(p *NormalizedPlay) *int {
	if p.Category == CategoryExtraPoint || p.Category == CategoryTwoPoint {
		d := 2
		return &d
	}
	if p.YardLine == nil {
		return nil
	}
	yd := *p.YardLine
	var d int
	switch {
	case p.FieldSideTeam == "" && yd == 50:
		d = 50
	case p.FieldSide == FieldSideOwn:
		d = 100 - yd
	case p.FieldSide == FieldSideOpponent:
		d = yd
	default:
		return nil
	}
	return &d
}

func deriveTeamRelative(rec *PlayRecord) {
	if !rec.Possession.Known() {
		return
	}
	homeWP := rec.HomeWinProbability
	awayWP := 100 - homeWP
	home, away := rec.HomeScore, rec.AwayScore

	switch rec.Possession.Offense {
	case rec.HomeTeamID:
		rec.TeamWinProbability, rec.OpponentWinProbability = &homeWP, &awayWP
		rec.TeamScore, rec.OpponentScore = &home, &away
	case rec.AwayTeamID:
		rec.TeamWinProbability, rec.OpponentWinProbability = &awayWP, &homeWP
		rec.TeamScore, rec.OpponentScore = &away, &home
	}
}
