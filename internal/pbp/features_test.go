package pbp

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/winprob"
)

type fakeSource struct {
	meta    GameMetadata
	table   PlayTable
	roster  Roster
	metaErr error
}

func (f *fakeSource) GameMetadata(ctx context.Context, boxscoreID string) (GameMetadata, error) {
	return f.meta, f.metaErr
}

func (f *fakeSource) PlayTable(ctx context.Context, boxscoreID string) (PlayTable, error) {
	return f.table, nil
}

func (f *fakeSource) Roster(ctx context.Context, boxscoreID string) (Roster, error) {
	return f.roster, nil
}

type fakeTeams struct {
	directory TeamDirectory
	err       error
}

func (f *fakeTeams) TeamNames(ctx context.Context, season int) (TeamDirectory, error) {
	return f.directory, f.err
}

func openerMeta() GameMetadata {
	return GameMetadata{
		BoxscoreID:     "202309070kan",
		HomeTeamID:     "KAN",
		AwayTeamID:     "DET",
		Season:         2023,
		PointSpread:    -6.5,
		FinalHomeScore: 20,
		FinalAwayScore: 21,
	}
}

func openerRoster() Roster {
	return Roster{
		"Patterson05": "DET", "Goff16": "DET", "LaPorta87": "DET", "Branch32": "DET", "Hutchinson97": "DET",
		"Mahomes15": "KAN", "Kelce87": "KAN", "Pacheco10": "KAN",
	}
}

func openerTable() PlayTable {
	row := func(detail, clock, loc, down, togo, away, home, ep string, homeRow bool) RawPlay {
		return RawPlay{
			BoxscoreID: "202309070kan", Description: detail, QuarterDisplay: "1", ClockRemaining: clock,
			Location: loc, Down: down, YardsToGo: togo, AwayScore: away, HomeScore: home,
			ExpPtsBefore: ep, IsHomeTeamRow: homeRow,
		}
	}
	return PlayTable{Plays: []RawPlay{
		row("Detroit Lions won the coin toss and deferred", "15:00", "", "", "", "0", "0", "", false),
		row("Patterson05 kicks off 65 yards, touchback", "15:00", "DET 35", "", "", "0", "0", "0.00", false),
		row("Mahomes15 pass complete short left to Kelce87 for 8 yards (tackle by Branch32)", "14:55", "KAN 25", "1", "10", "0", "0", "0.61", true),
		row("Timeout #1 by Detroit Lions at 14:20", "14:20", "", "", "", "0", "0", "", true),
		row("Pacheco10 right guard for 3 yards", "14:10", "KAN 33", "2", "2", "0", "0", "1.10", true),
		row("Pacheco10 left end for 2 yards. Pacheco10 fumbles (forced by Branch32), recovered by Hutchinson97 at KAN-38", "13:40", "KAN 36", "1", "10", "0", "0", "1.40", true),
		row("Goff16 pass complete deep right to LaPorta87 for 38 yards, touchdown", "13:30", "KAN 38", "1", "10", "0", "0", "2.90", false),
		row("Patterson05 kicks extra point good", "13:25", "KAN 15", "", "", "6", "0", "", false),
	}}
}

func TestAssemble(t *testing.T) {
	meta := openerMeta()
	fs := Assemble(meta, openerTable(), openerRoster(), TeamDirectory{"KAN": "Kansas City Chiefs", "DET": "Detroit Lions"})
	plays := fs.Plays
	require.Len(t, plays, 8)

	for i, p := range plays {
		assert.Equal(t, meta.BoxscoreID, p.BoxscoreID)
		assert.Equal(t, i, p.Index)
	}

	chiefs := Possession{Offense: "KAN", Defense: "DET"}
	lions := Possession{Offense: "DET", Defense: "KAN"}

	t.Run("possession", func(t *testing.T) {
		want := []Possession{{}, chiefs, chiefs, chiefs, chiefs, chiefs, lions, lions}
		for i, p := range plays {
			assert.Equal(t, want[i], p.Possession, "play %d", i)
		}
	})

	t.Run("field position", func(t *testing.T) {
		assert.Equal(t, FieldSideOwn, plays[2].FieldSide)
		require.NotNil(t, plays[2].DistanceToGoal)
		assert.Equal(t, 75, *plays[2].DistanceToGoal)

		assert.Equal(t, FieldSideOpponent, plays[6].FieldSide)
		require.NotNil(t, plays[6].DistanceToGoal)
		assert.Equal(t, 38, *plays[6].DistanceToGoal)

		require.NotNil(t, plays[7].DistanceToGoal)
		assert.Equal(t, 2, *plays[7].DistanceToGoal)

		assert.Nil(t, plays[3].DistanceToGoal)
	})

	t.Run("lost fumble is a turnover", func(t *testing.T) {
		require.NotNil(t, plays[5].Fumble)
		assert.True(t, plays[5].Fumble.IsLost)
		assert.True(t, plays[5].IsTurnover)
		assert.False(t, plays[4].IsTurnover)
	})

	t.Run("team relative fields", func(t *testing.T) {
		require.NotNil(t, plays[2].TeamWinProbability)
		assert.Equal(t, plays[2].HomeWinProbability, *plays[2].TeamWinProbability)
		assert.InDelta(t, 100-plays[2].HomeWinProbability, *plays[2].OpponentWinProbability, 1e-9)

		require.NotNil(t, plays[7].TeamScore)
		assert.Equal(t, 6, *plays[7].TeamScore)
		assert.Equal(t, 0, *plays[7].OpponentScore)
		assert.InDelta(t, 100-plays[7].HomeWinProbability, *plays[7].TeamWinProbability, 1e-9)

		assert.Nil(t, plays[0].TeamWinProbability)
	})

	t.Run("win probability boundaries", func(t *testing.T) {
		initial := winprob.InitialWinProbability(meta.PointSpread)
		assert.Equal(t, initial, plays[1].HomeWinProbability)

		last := plays[7]
		assert.InDelta(t, 0.0, last.HomeWinProbability+last.HomeWinProbabilityAdded, 1e-9)

		var sum float64
		for _, p := range plays {
			sum += p.HomeWinProbabilityAdded
		}
		assert.InDelta(t, 0.0-initial, sum, 1e-9)
	})

	t.Run("timeout is transparent", func(t *testing.T) {
		require.NotNil(t, plays[3].Timeout)
		assert.Equal(t, "DET", plays[3].Timeout.TeamID)
		assert.Zero(t, plays[3].HomeWinProbabilityAdded)
		assert.Equal(t, plays[4].HomeWinProbability, plays[3].HomeWinProbability)
	})

	t.Run("report", func(t *testing.T) {
		assert.Equal(t, BuildReport{
			BoxscoreID:       meta.BoxscoreID,
			Plays:            8,
			PossessionExempt: 1,
		}, fs.Report)
	})
}

func TestAssemblePuntFumbleOwnership(t *testing.T) {
	meta := GameMetadata{BoxscoreID: "202401140kan", HomeTeamID: "KAN", AwayTeamID: "NWE", Season: 2023}
	roster := Roster{"Punter01": "NWE", "Hill10": "KAN", "Gunner22": "NWE"}

	tests := []struct {
		name      string
		recoverer string
		lost      bool
	}{
		{name: "returner keeps his own muff", recoverer: "Hill10", lost: false},
		{name: "punting team recovers", recoverer: "Gunner22", lost: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail := "Punter01 punts 45 yards, returned by Hill10 for 5 yards. Hill10 fumbles (forced by Gunner22), recovered by " +
				tt.recoverer + " at KAN-30"
			table := PlayTable{Plays: []RawPlay{{
				BoxscoreID: meta.BoxscoreID, Description: detail, QuarterDisplay: "2", ClockRemaining: "7:12",
				Location: "NWE 30", AwayScore: "3", HomeScore: "7",
			}}}

			fs := Assemble(meta, table, roster, nil)
			require.Len(t, fs.Plays, 1)
			p := fs.Plays[0]
			assert.Equal(t, "NWE", p.Possession.Offense)
			require.NotNil(t, p.Fumble)
			assert.Equal(t, tt.lost, p.Fumble.IsLost)
			assert.Equal(t, tt.lost, p.IsTurnover)
		})
	}
}

func TestBuildGameFeatureSet(t *testing.T) {
	ctx := context.Background()

	t.Run("team lookup failure degrades", func(t *testing.T) {
		table := openerTable()
		table.RowErrors = []error{&RowError{BoxscoreID: "202309070kan", RowIndex: 4, Cells: 3, Reason: "short row"}}
		source := &fakeSource{meta: openerMeta(), table: table, roster: openerRoster()}
		a := NewAssembler(source, &fakeTeams{err: errors.New("teams page unavailable")})

		fs, err := a.BuildGameFeatureSet(ctx, "202309070kan")
		require.NoError(t, err)
		require.Len(t, fs.Plays, 8)
		assert.True(t, fs.Report.TeamLookupMissed)
		assert.Equal(t, 1, fs.Report.SkippedRows)
		assert.Empty(t, fs.Plays[3].Timeout.TeamID)
		assert.True(t, errors.Is(table.RowErrors[0], ErrStructuralRow))
	})

	t.Run("metadata failure is returned", func(t *testing.T) {
		sentinel := errors.New("not found")
		a := NewAssembler(&fakeSource{metaErr: sentinel}, &fakeTeams{})

		fs, err := a.BuildGameFeatureSet(ctx, "199901010xxx")
		require.Error(t, err)
		assert.Nil(t, fs)
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestWriteCSV(t *testing.T) {
	fs := Assemble(openerMeta(), openerTable(), openerRoster(), nil)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fs.Plays))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(fs.Plays)+1)
	assert.Equal(t, Columns(), rows[0])

	col := func(name string) int {
		for i, c := range rows[0] {
			if c == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	pass := rows[3]
	assert.Equal(t, "pass", pass[col("category")])
	assert.Equal(t, "SL", pass[col("pass_location")])
	assert.Equal(t, "75", pass[col("distance_to_goal")])
	assert.Equal(t, "KAN", pass[col("offense")])
	assert.Empty(t, pass[col("fg_distance")])
	assert.Empty(t, pass[col("rush_yards")])

	run := rows[5]
	assert.Equal(t, "3", run[col("rush_yards")])
	assert.Equal(t, "RG", run[col("rush_direction")])
}
