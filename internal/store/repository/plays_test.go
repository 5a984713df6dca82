package repository

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/store"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func sampleFeatureSet() *pbp.GameFeatureSet {
	meta := pbp.GameMetadata{
		BoxscoreID:     "202309070kan",
		HomeTeamID:     "KAN",
		AwayTeamID:     "DET",
		Season:         2023,
		PointSpread:    -6.5,
		FinalHomeScore: 20,
		FinalAwayScore: 21,
	}
	table := pbp.PlayTable{Plays: []pbp.RawPlay{
		{BoxscoreID: meta.BoxscoreID, Description: "PattRi00 kicks off 65 yards, touchback", QuarterDisplay: "1", ClockRemaining: "15:00", Location: "DET 35", AwayScore: "0", HomeScore: "0", ExpPtsBefore: "0.00"},
		{BoxscoreID: meta.BoxscoreID, Description: "MahoPa00 pass complete short left to KelcTr00 for 8 yards", QuarterDisplay: "1", ClockRemaining: "14:55", Down: "1", YardsToGo: "10", Location: "KAN 25", AwayScore: "0", HomeScore: "0", ExpPtsBefore: "0.61", IsHomeTeamRow: true},
	}}
	fs := pbp.Assemble(meta, table, pbp.Roster{"MahoPa00": "KAN"}, nil)
	return &fs
}

func TestNewPlayRow(t *testing.T) {
	fs := sampleFeatureSet()
	rec := &fs.Plays[1]

	row, err := NewPlayRow(rec)
	require.NoError(t, err)

	assert.Equal(t, "202309070kan", row.BoxscoreID)
	assert.Equal(t, 1, row.PlayIndex)
	assert.Equal(t, "pass", row.Category)
	assert.Equal(t, "KAN", row.Offense.String)
	assert.True(t, row.Down.Valid)
	assert.Equal(t, int32(1), row.Down.Int32)
	assert.True(t, row.ExpPtsBefore.Valid)
	assert.InDelta(t, 0.61, row.ExpPtsBefore.Float64, 1e-9)

	var decoded pbp.PlayRecord
	require.NoError(t, json.Unmarshal(row.Record, &decoded))
	assert.Equal(t, rec.Index, decoded.Index)
	assert.Equal(t, rec.Category, decoded.Category)
	require.NotNil(t, decoded.Pass)
	assert.Equal(t, "MahoPa00", decoded.Pass.Passer)
	assert.Equal(t, rec.HomeWinProbability, decoded.HomeWinProbability)

	assert.Len(t, playValues(row), len(playCopyColumns))
}

func TestNewPlayRowNulls(t *testing.T) {
	row, err := NewPlayRow(&pbp.PlayRecord{})
	require.NoError(t, err)
	assert.False(t, row.Offense.Valid)
	assert.False(t, row.Down.Valid)
	assert.False(t, row.DistanceToGoal.Valid)
	assert.False(t, row.ExpPtsBefore.Valid)

	assert.Equal(t, int32(7), nullInt(intPtr(7)).Int32)
	assert.Equal(t, -0.5, nullFloat(floatPtr(-0.5)).Float64)
}

func TestGameConversions(t *testing.T) {
	fs := sampleFeatureSet()
	game := &store.Game{
		BoxscoreID:     fs.Game.BoxscoreID,
		Season:         fs.Game.Season,
		HomeTeamID:     fs.Game.HomeTeamID,
		AwayTeamID:     fs.Game.AwayTeamID,
		PointSpread:    fs.Game.PointSpread,
		FinalHomeScore: fs.Game.FinalHomeScore,
		FinalAwayScore: fs.Game.FinalAwayScore,
		PlayCount:      2,
		SkippedRows:    1,
	}

	assert.Equal(t, fs.Game, Meta(game))
	report := Report(game)
	assert.Equal(t, 2, report.Plays)
	assert.Equal(t, 1, report.SkippedRows)
	assert.Equal(t, "202309070kan", report.BoxscoreID)
}

func TestReplaceGamePlays(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := store.NewDatabase(dsn, logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.RunMigrations(ctx))

	games := NewGameRepository(db)
	plays := NewPlayRepository(db)
	fs := sampleFeatureSet()

	// Twice, to exercise the replace path.
	require.NoError(t, plays.ReplaceGamePlays(ctx, fs))
	require.NoError(t, plays.ReplaceGamePlays(ctx, fs))

	loaded, err := plays.LoadFeatureSet(ctx, games, fs.Game.BoxscoreID)
	require.NoError(t, err)
	assert.Equal(t, fs.Game, loaded.Game)
	require.Len(t, loaded.Plays, len(fs.Plays))
	assert.Equal(t, fs.Plays[1].Possession, loaded.Plays[1].Possession)

	built, err := games.BuiltIDs(ctx, []string{fs.Game.BoxscoreID, "199909120stl"})
	require.NoError(t, err)
	assert.True(t, built[fs.Game.BoxscoreID])
	assert.False(t, built["199909120stl"])

	_, err = games.GetByBoxscoreID(ctx, "199909120stl")
	assert.ErrorIs(t, err, ErrNotFound)
}
