package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/store"
)

// ErrNotFound is returned when a game has never been built.
var ErrNotFound = errors.New("game not found")

const gameColumns = `
	boxscore_id, season, home_team_id, away_team_id, point_spread,
	final_home_score, final_away_score, play_count, unrecognized,
	possession_exempt, unknown_possession, skipped_rows, unrecognized_rate, team_lookup_missed,
	built_at, created_at, updated_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// GameRepository handles game data access
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// GetByBoxscoreID finds a game by its box score ID
func (r *GameRepository) GetByBoxscoreID(ctx context.Context, boxscoreID string) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE boxscore_id = $1`

	game, err := scanGame(r.db.DB().QueryRowContext(ctx, query, boxscoreID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", boxscoreID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}
	return game, nil
}

// GetBySeason returns all built games in a season
func (r *GameRepository) GetBySeason(ctx context.Context, season int) ([]*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE season = $1 ORDER BY boxscore_id`

	rows, err := r.db.DB().QueryContext(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("querying season games: %w", err)
	}
	defer rows.Close()

	var games []*store.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// BuiltIDs returns which of ids already have a stored feature set.
func (r *GameRepository) BuiltIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	rows, err := r.db.DB().QueryContext(ctx, `SELECT boxscore_id FROM games WHERE boxscore_id = ANY($1)`, stringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("querying built games: %w", err)
	}
	defer rows.Close()

	built := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		built[id] = true
	}
	return built, rows.Err()
}

// upsertGame writes the game row of a feature set.
func upsertGame(ctx context.Context, db execer, fs *pbp.GameFeatureSet) error {
	query := `
		INSERT INTO games (
			boxscore_id, season, home_team_id, away_team_id, point_spread,
			final_home_score, final_away_score, play_count, unrecognized,
			possession_exempt, unknown_possession, skipped_rows, unrecognized_rate,
			team_lookup_missed, built_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())
		ON CONFLICT (boxscore_id) DO UPDATE SET
			season = EXCLUDED.season,
			home_team_id = EXCLUDED.home_team_id,
			away_team_id = EXCLUDED.away_team_id,
			point_spread = EXCLUDED.point_spread,
			final_home_score = EXCLUDED.final_home_score,
			final_away_score = EXCLUDED.final_away_score,
			play_count = EXCLUDED.play_count,
			unrecognized = EXCLUDED.unrecognized,
			possession_exempt = EXCLUDED.possession_exempt,
			unknown_possession = EXCLUDED.unknown_possession,
			skipped_rows = EXCLUDED.skipped_rows,
			unrecognized_rate = EXCLUDED.unrecognized_rate,
			team_lookup_missed = EXCLUDED.team_lookup_missed,
			built_at = NOW(),
			updated_at = NOW()
	`

	rate := sql.NullFloat64{Float64: fs.Report.UnrecognizedRate, Valid: fs.Report.Plays > 0}
	_, err := db.ExecContext(ctx, query,
		fs.Game.BoxscoreID, fs.Game.Season, fs.Game.HomeTeamID, fs.Game.AwayTeamID, fs.Game.PointSpread,
		fs.Game.FinalHomeScore, fs.Game.FinalAwayScore, fs.Report.Plays, fs.Report.Unrecognized,
		fs.Report.PossessionExempt, fs.Report.UnknownPossession, fs.Report.SkippedRows, rate, fs.Report.TeamLookupMissed,
	)
	if err != nil {
		return fmt.Errorf("upserting game %s: %w", fs.Game.BoxscoreID, err)
	}
	return nil
}

func scanGame(scanner interface {
	Scan(dest ...interface{}) error
}) (*store.Game, error) {
	game := &store.Game{}
	err := scanner.Scan(
		&game.BoxscoreID, &game.Season, &game.HomeTeamID, &game.AwayTeamID, &game.PointSpread,
		&game.FinalHomeScore, &game.FinalAwayScore, &game.PlayCount, &game.Unrecognized,
		&game.PossessionExempt, &game.UnknownPossession, &game.SkippedRows, &game.UnrecognizedRate, &game.TeamLookupMissed,
		&game.BuiltAt, &game.CreatedAt, &game.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return game, nil
}

// Meta converts a stored game back to the metadata it was built from.
func Meta(g *store.Game) pbp.GameMetadata {
	return pbp.GameMetadata{
		BoxscoreID:     g.BoxscoreID,
		HomeTeamID:     g.HomeTeamID,
		AwayTeamID:     g.AwayTeamID,
		Season:         g.Season,
		PointSpread:    g.PointSpread,
		FinalHomeScore: g.FinalHomeScore,
		FinalAwayScore: g.FinalAwayScore,
	}
}

// Report converts a stored game back to its build report.
func Report(g *store.Game) pbp.BuildReport {
	return pbp.BuildReport{
		BoxscoreID:        g.BoxscoreID,
		Plays:             g.PlayCount,
		Unrecognized:      g.Unrecognized,
		PossessionExempt:  g.PossessionExempt,
		UnknownPossession: g.UnknownPossession,
		SkippedRows:       g.SkippedRows,
		UnrecognizedRate:  g.UnrecognizedRate.Float64,
		TeamLookupMissed:  g.TeamLookupMissed,
	}
}
