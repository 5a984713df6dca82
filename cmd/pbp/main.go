package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/ingest/pfr"
	"github.com/fortuna/gridiron/internal/logger"
	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/service"
)

const appName = "gridiron-pbp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	var (
		gameID  = flag.String("game", "", "Boxscore ID to build (e.g. 202309070kan)")
		season  = flag.Int("season", 0, "Season to build every played game of")
		workers = flag.Int("workers", cfg.BackfillWorkers, "Games built in parallel")
		out     = flag.String("out", "", "CSV output file (default stdout)")
		dryRun  = flag.Bool("dry-run", false, "List the games without building them")
	)
	flag.Parse()

	// Logs go to stderr so stdout stays clean CSV.
	log := logger.NewWithOutput(cfg.LogLevel, "text", os.Stderr)

	spec, err := buildSpec(*gameID, *season)
	if err != nil {
		log.Fatalf("%s: %v (use -game or -season)", appName, err)
	}
	spec.DryRun = *dryRun

	var docCache pfr.DocumentCache = cache.NewMemoryCache()
	var teamStore cache.TeamNameStore
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching pages in memory")
		} else {
			defer redisCache.Close()
			docCache = redisCache
			teamStore = redisCache
		}
	}

	var fetcher pfr.Fetcher
	if cfg.FetchMode == config.FetchModeBrowser {
		browser := pfr.NewBrowserFetcher(cfg.FetchTimeout, cfg.FetchMinInterval, log)
		defer browser.Close()
		fetcher = browser
	} else {
		fetcher = pfr.NewHTTPFetcher(pfr.HTTPOptions{
			Timeout:     cfg.FetchTimeout,
			MinInterval: cfg.FetchMinInterval,
			MaxRetries:  cfg.FetchMaxRetries,
		}, log)
	}
	fetcher = pfr.NewCachedFetcher(fetcher, docCache, cfg.DocCacheTTL, log)

	client := pfr.New(cfg.PFRBaseURL, fetcher, log)
	assembler := pbp.NewAssembler(client, cache.NewTeamNameCache(client, teamStore, log))
	games := newCollector(service.NewPlayService(assembler, client, nil, nil, log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := backfill.NewRunner(games, *workers, log)
	result, err := runner.Run(ctx, spec, &consoleReporter{log: log})
	if err != nil {
		log.WithError(err).Fatal("build failed")
	}
	if spec.DryRun {
		return
	}
	if result.Succeeded == 0 {
		log.Fatal("no game could be built")
	}

	if err := writeOutput(*out, games.records()); err != nil {
		log.WithError(err).Fatal("failed to write CSV")
	}
	log.WithFields(logrus.Fields{
		"games":  result.Succeeded,
		"failed": len(result.Failed),
	}).Info("done")
}

func buildSpec(gameID string, season int) (backfill.JobSpec, error) {
	switch {
	case gameID != "" && season != 0:
		return backfill.JobSpec{}, errors.New("-game and -season are exclusive")
	case gameID != "":
		if !pfr.ValidBoxscoreID(gameID) {
			return backfill.JobSpec{}, fmt.Errorf("invalid boxscore id %q", gameID)
		}
		return backfill.JobSpec{Type: backfill.JobTypeGame, BoxscoreIDs: []string{gameID}}, nil
	case season != 0:
		return backfill.JobSpec{Type: backfill.JobTypeSeason, Season: season}, nil
	default:
		return backfill.JobSpec{}, errors.New("nothing to build")
	}
}

func writeOutput(path string, records []pbp.PlayRecord) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return pbp.WriteCSV(w, records)
}

// collector keeps every feature set the runner builds.
type collector struct {
	*service.PlayService

	mu   sync.Mutex
	sets map[string]*pbp.GameFeatureSet
}

func newCollector(plays *service.PlayService) *collector {
	return &collector{PlayService: plays, sets: make(map[string]*pbp.GameFeatureSet)}
}

func (c *collector) Build(ctx context.Context, boxscoreID string) (*pbp.GameFeatureSet, error) {
	fs, err := c.PlayService.Build(ctx, boxscoreID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.sets[boxscoreID] = fs
	c.mu.Unlock()
	return fs, nil
}

// records returns the plays of every game, games in boxscore ID order.
func (c *collector) records() []pbp.PlayRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.sets))
	for id := range c.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []pbp.PlayRecord
	for _, id := range ids {
		out = append(out, c.sets[id].Plays...)
	}
	return out
}

type consoleReporter struct {
	log *logrus.Logger
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec, total int) {
	c.log.WithFields(logrus.Fields{"type": spec.Type, "games": total, "dry_run": spec.DryRun}).Info("starting")
}

func (c *consoleReporter) OnGameProcessed(boxscoreID string, current, total int) {
	c.log.Infof("[%d/%d] built %s", current, total, boxscoreID)
}

func (c *consoleReporter) OnGameFailed(boxscoreID string, err error, current, total int) {
	c.log.WithError(err).Warnf("[%d/%d] failed %s", current, total, boxscoreID)
}

func (c *consoleReporter) OnJobComplete(result backfill.Result) {
	c.log.WithFields(logrus.Fields{
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("job complete")
}

func (c *consoleReporter) OnJobError(err error) {
	c.log.WithError(err).Error("job error")
}
