package service

import (
	"context"

	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/fortuna/gridiron/internal/store/repository"
)

// RepositoryStore is the Postgres FeatureStore.
type RepositoryStore struct {
	games *repository.GameRepository
	plays *repository.PlayRepository
}

func NewRepositoryStore(db *store.Database) *RepositoryStore {
	return &RepositoryStore{
		games: repository.NewGameRepository(db),
		plays: repository.NewPlayRepository(db),
	}
}

func (s *RepositoryStore) SaveFeatureSet(ctx context.Context, fs *pbp.GameFeatureSet) error {
	return s.plays.ReplaceGamePlays(ctx, fs)
}

func (s *RepositoryStore) LoadFeatureSet(ctx context.Context, boxscoreID string) (*pbp.GameFeatureSet, error) {
	return s.plays.LoadFeatureSet(ctx, s.games, boxscoreID)
}

func (s *RepositoryStore) BuiltIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return s.games.BuiltIDs(ctx, ids)
}
