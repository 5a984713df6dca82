package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/pbp"
)

func TestBuildSpec(t *testing.T) {
	spec, err := buildSpec("202309070kan", 0)
	require.NoError(t, err)
	assert.Equal(t, backfill.JobTypeGame, spec.Type)
	assert.Equal(t, []string{"202309070kan"}, spec.BoxscoreIDs)

	spec, err = buildSpec("", 2023)
	require.NoError(t, err)
	assert.Equal(t, backfill.JobTypeSeason, spec.Type)
	assert.Equal(t, 2023, spec.Season)

	_, err = buildSpec("", 0)
	assert.Error(t, err)
	_, err = buildSpec("202309070kan", 2023)
	assert.Error(t, err)
	_, err = buildSpec("KAN", 0)
	assert.Error(t, err)
}

func TestCollectorRecordsOrderedByGame(t *testing.T) {
	c := newCollector(nil)
	c.sets["202309100atl"] = &pbp.GameFeatureSet{Plays: []pbp.PlayRecord{{Index: 0, HomeTeamID: "ATL"}}}
	c.sets["202309070kan"] = &pbp.GameFeatureSet{Plays: []pbp.PlayRecord{{Index: 0, HomeTeamID: "KAN"}, {Index: 1, HomeTeamID: "KAN"}}}

	records := c.records()
	require.Len(t, records, 3)
	assert.Equal(t, "KAN", records[0].HomeTeamID)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, "ATL", records[2].HomeTeamID)
}
