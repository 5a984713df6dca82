package backfill

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fortuna/gridiron/internal/pbp"
)

// GameBuilder is the part of the play service the runner drives.
type GameBuilder interface {
	Build(ctx context.Context, boxscoreID string) (*pbp.GameFeatureSet, error)
	SeasonGames(ctx context.Context, season int) ([]string, error)
	Pending(ctx context.Context, ids []string) ([]string, error)
}

// Runner executes backfill specs, building games in parallel.
type Runner struct {
	games   GameBuilder
	workers int
	log     *logrus.Entry
}

func NewRunner(games GameBuilder, workers int, logger *logrus.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		games:   games,
		workers: workers,
		log:     logger.WithField("component", "backfill-runner"),
	}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// A failing game is reported and does not stop the others; only an inability
// to list the games or a cancelled context fails the run.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (Result, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}

	ids, err := r.resolve(ctx, spec)
	if err != nil {
		reporter.OnJobError(err)
		return Result{}, err
	}

	result := Result{Total: len(ids)}
	reporter.OnJobStart(spec, len(ids))

	if spec.DryRun {
		r.log.WithField("games", len(ids)).Info("dry run, nothing built")
		reporter.OnJobComplete(result)
		return result, nil
	}

	var (
		mu      sync.Mutex
		current int
	)
	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id // per-iteration copy (go1.21 loop semantics)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, err := r.games.Build(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			current++
			if err != nil {
				result.Failed = append(result.Failed, id)
				r.log.WithError(err).WithField("boxscore_id", id).Warn("game failed")
				reporter.OnGameFailed(id, err, current, len(ids))
				return nil
			}
			result.Succeeded++
			reporter.OnGameProcessed(id, current, len(ids))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		reporter.OnJobError(err)
		return result, err
	}

	reporter.OnJobComplete(result)
	return result, nil
}

func (r *Runner) resolve(ctx context.Context, spec JobSpec) ([]string, error) {
	var ids []string
	switch spec.Type {
	case JobTypeGame:
		if len(spec.BoxscoreIDs) == 0 {
			return nil, fmt.Errorf("no boxscore IDs provided for job type 'game'")
		}
		ids = dedupe(spec.BoxscoreIDs)
	case JobTypeSeason:
		listed, err := r.games.SeasonGames(ctx, spec.Season)
		if err != nil {
			return nil, fmt.Errorf("list %d season: %w", spec.Season, err)
		}
		ids = listed
	default:
		return nil, fmt.Errorf("unsupported job type %s", spec.Type)
	}

	if spec.SkipBuilt {
		pending, err := r.games.Pending(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("filter built games: %w", err)
		}
		ids = pending
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type nopReporter struct{}

func (nopReporter) OnJobStart(JobSpec, int) {}
func (nopReporter) OnGameProcessed(string, int, int) {}
func (nopReporter) OnGameFailed(string, error, int, int) {}
func (nopReporter) OnJobComplete(Result) {}
func (nopReporter) OnJobError(error) {}
