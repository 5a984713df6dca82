package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/ingest/pfr"
	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/store/repository"
)

// ErrInvalidGameID is returned for IDs that are not box score IDs.
var ErrInvalidGameID = errors.New("invalid boxscore id")

// Builder produces the feature set of one game.
type Builder interface {
	BuildGameFeatureSet(ctx context.Context, boxscoreID string) (*pbp.GameFeatureSet, error)
}

// ScheduleLister lists the box scores of a season.
type ScheduleLister interface {
	SeasonBoxscoreIDs(ctx context.Context, season int) ([]string, error)
}

// FeatureStore persists built feature sets. LoadFeatureSet returns an error
// wrapping repository.ErrNotFound for games never built.
type FeatureStore interface {
	SaveFeatureSet(ctx context.Context, fs *pbp.GameFeatureSet) error
	LoadFeatureSet(ctx context.Context, boxscoreID string) (*pbp.GameFeatureSet, error)
	BuiltIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// FeaturePublisher announces built feature sets.
type FeaturePublisher interface {
	PublishFeatureSet(ctx context.Context, fs *pbp.GameFeatureSet) error
}

// PlayService builds, persists and publishes game feature sets. Store and
// publisher are optional.
type PlayService struct {
	builder   Builder
	schedule  ScheduleLister
	store     FeatureStore
	publisher FeaturePublisher
	log       *logrus.Entry
}

func NewPlayService(builder Builder, schedule ScheduleLister, store FeatureStore, publisher FeaturePublisher, logger *logrus.Logger) *PlayService {
	return &PlayService{
		builder:   builder,
		schedule:  schedule,
		store:     store,
		publisher: publisher,
		log:       logger.WithField("component", "play-service"),
	}
}

// Build fetches and annotates a game, then stores and publishes it. A
// publish failure is logged and does not fail the build.
func (s *PlayService) Build(ctx context.Context, boxscoreID string) (*pbp.GameFeatureSet, error) {
	if !pfr.ValidBoxscoreID(boxscoreID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, boxscoreID)
	}

	fs, err := s.builder.BuildGameFeatureSet(ctx, boxscoreID)
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"boxscore_id":        boxscoreID,
		"plays":              fs.Report.Plays,
		"unrecognized":       fs.Report.Unrecognized,
		"unknown_possession": fs.Report.UnknownPossession,
		"skipped_rows":       fs.Report.SkippedRows,
	})
	if fs.Report.TeamLookupMissed {
		entry = entry.WithField("team_lookup_missed", true)
	}
	entry.Info("built game feature set")

	if s.store != nil {
		if err := s.store.SaveFeatureSet(ctx, fs); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", boxscoreID, err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishFeatureSet(ctx, fs); err != nil {
			s.log.WithError(err).WithField("boxscore_id", boxscoreID).Warn("failed to publish feature set")
		}
	}

	return fs, nil
}

// Get returns the stored feature set of a game, building it when it was never
// built or when refresh is set.
func (s *PlayService) Get(ctx context.Context, boxscoreID string, refresh bool) (*pbp.GameFeatureSet, error) {
	if !pfr.ValidBoxscoreID(boxscoreID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, boxscoreID)
	}
	if s.store == nil || refresh {
		return s.Build(ctx, boxscoreID)
	}

	fs, err := s.store.LoadFeatureSet(ctx, boxscoreID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.Build(ctx, boxscoreID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", boxscoreID, err)
	}
	return fs, nil
}

// SeasonGames lists every played box score of a season.
func (s *PlayService) SeasonGames(ctx context.Context, season int) ([]string, error) {
	return s.schedule.SeasonBoxscoreIDs(ctx, season)
}

// Pending drops the games that already have a stored feature set. Without a
// store every game is pending.
func (s *PlayService) Pending(ctx context.Context, ids []string) ([]string, error) {
	if s.store == nil || len(ids) == 0 {
		return ids, nil
	}
	built, err := s.store.BuiltIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if !built[id] {
			pending = append(pending, id)
		}
	}
	return pending, nil
}
