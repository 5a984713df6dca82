package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/fortuna/gridiron/internal/pbp"
)

// TeamNameStore persists season directories across restarts.
type TeamNameStore interface {
	LoadTeamNames(ctx context.Context, season int) (pbp.TeamDirectory, bool, error)
	StoreTeamNames(ctx context.Context, season int, directory pbp.TeamDirectory) error
}

// TeamNameCache is a read-through cache of season team directories in front
// of a pbp.TeamNameResolver. Concurrent first lookups of a season share one
// fetch. Directories are never mutated or evicted once cached.
type TeamNameCache struct {
	upstream pbp.TeamNameResolver
	store    TeamNameStore
	log      *logrus.Entry

	seasons sync.Map // int -> pbp.TeamDirectory
	group   singleflight.Group
}

// NewTeamNameCache wraps upstream. store may be nil.
func NewTeamNameCache(upstream pbp.TeamNameResolver, store TeamNameStore, logger *logrus.Logger) *TeamNameCache {
	return &TeamNameCache{
		upstream: upstream,
		store:    store,
		log:      logger.WithField("component", "team-names"),
	}
}

func (c *TeamNameCache) TeamNames(ctx context.Context, season int) (pbp.TeamDirectory, error) {
	if v, ok := c.seasons.Load(season); ok {
		return v.(pbp.TeamDirectory), nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(season), func() (interface{}, error) {
		if v, ok := c.seasons.Load(season); ok {
			return v, nil
		}

		directory, err := c.load(ctx, season)
		if err != nil {
			return nil, err
		}
		c.seasons.Store(season, directory)
		return directory, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(pbp.TeamDirectory), nil
}

func (c *TeamNameCache) load(ctx context.Context, season int) (pbp.TeamDirectory, error) {
	if c.store != nil {
		directory, ok, err := c.store.LoadTeamNames(ctx, season)
		if err != nil {
			c.log.WithError(err).WithField("season", season).Warn("team name store read failed")
		}
		if ok && len(directory) > 0 {
			return directory, nil
		}
	}

	directory, err := c.upstream.TeamNames(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("team names for %d: %w", season, err)
	}

	if c.store != nil {
		if err := c.store.StoreTeamNames(ctx, season, directory); err != nil {
			c.log.WithError(err).WithField("season", season).Warn("team name store write failed")
		}
	}
	c.log.WithFields(logrus.Fields{"season": season, "teams": len(directory)}).Info("loaded team names")
	return directory, nil
}
