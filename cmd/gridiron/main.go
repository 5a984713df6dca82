package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/api/rest"
	"github.com/fortuna/gridiron/internal/api/websocket"
	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/ingest/pfr"
	"github.com/fortuna/gridiron/internal/logger"
	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/scheduler"
	"github.com/fortuna/gridiron/internal/service"
	"github.com/fortuna/gridiron/internal/store"
)

const (
	serviceName    = "gridiron"
	serviceVersion = "1.0.0"

	connectAttempts = 30
	connectDelay    = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.WithFields(logrus.Fields{"version": serviceVersion, "season": cfg.CurrentSeason}).Infof("starting %s", serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := make(map[string]rest.HealthCheck)

	// Redis backs the document cache, team names and the feature stream.
	// Without it pages are cached in memory and nothing is published.
	var (
		docCache  pfr.DocumentCache = cache.NewMemoryCache()
		teamStore cache.TeamNameStore
		features  service.FeaturePublisher
	)
	if cfg.RedisURL != "" {
		redisCache := connectRedis(cfg.RedisURL, log)
		defer redisCache.Close()

		docCache = redisCache
		teamStore = redisCache
		features = publisher.NewRedisStreamPublisher(redisCache.Client())
		checks["redis"] = redisCache.HealthCheck
		log.Info("connected to Redis")
	}

	var fetcher pfr.Fetcher
	switch cfg.FetchMode {
	case config.FetchModeBrowser:
		browser := pfr.NewBrowserFetcher(cfg.FetchTimeout, cfg.FetchMinInterval, log)
		defer browser.Close()
		fetcher = browser
	default:
		fetcher = pfr.NewHTTPFetcher(pfr.HTTPOptions{
			Timeout:     cfg.FetchTimeout,
			MinInterval: cfg.FetchMinInterval,
			MaxRetries:  cfg.FetchMaxRetries,
		}, log)
	}
	fetcher = pfr.NewCachedFetcher(fetcher, docCache, cfg.DocCacheTTL, log)

	client := pfr.New(cfg.PFRBaseURL, fetcher, log)
	teams := cache.NewTeamNameCache(client, teamStore, log)
	assembler := pbp.NewAssembler(client, teams)

	var (
		db           *store.Database
		featureStore service.FeatureStore
	)
	if cfg.DatabaseURL != "" {
		db, err = store.NewDatabase(cfg.DatabaseURL, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			log.WithError(err).Fatal("failed to run database migrations")
		}
		featureStore = service.NewRepositoryStore(db)
		checks["postgres"] = db.HealthCheck
		log.Info("database ready")
	} else {
		log.Warn("DATABASE_URL not set: feature sets are not persisted and backfill is disabled")
	}

	plays := service.NewPlayService(assembler, client, featureStore, features, log)

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	var (
		backfillService  *backfill.Service
		backfillHandler  *rest.BackfillHandler
		sched            *scheduler.Orchestrator
		schedulerHandler *rest.SchedulerHandler
	)
	if db != nil {
		runner := backfill.NewRunner(plays, cfg.BackfillWorkers, log)
		backfillService = backfill.NewService(backfill.NewRepository(db), runner, hub, log)
		backfillService.Start()
		backfillHandler = rest.NewBackfillHandler(backfillService)
		log.WithField("workers", cfg.BackfillWorkers).Info("backfill service started")

		if cfg.EnableScheduler {
			sched = scheduler.NewOrchestrator(scheduler.Config{
				CurrentSeason: cfg.CurrentSeason,
				SeasonSync:    cfg.ScheduleCron,
				TeamWarm:      cfg.TeamWarmCron,
			}, backfillService, teams, log)
			if err := sched.Start(); err != nil {
				log.WithError(err).Fatal("failed to start scheduler")
			}
			schedulerHandler = rest.NewSchedulerHandler(sched)
		}
	}

	router := rest.NewRouter(rest.NewHandler(plays, checks), backfillHandler, schedulerHandler, log)
	restServer := rest.NewServer(cfg.RestPort, router, log)
	go func() {
		if err := restServer.Start(); err != nil {
			log.WithError(err).Warn("REST server stopped")
		}
	}()

	wsServer := websocket.NewServer(hub, log)
	go func() {
		if err := wsServer.Start(cfg.WSPort); err != nil {
			log.WithError(err).Warn("websocket server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"rest":      "http://0.0.0.0:" + cfg.RestPort,
		"websocket": "ws://0.0.0.0:" + cfg.WSPort + "/ws/backfill",
	}).Infof("%s started", serviceName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down gracefully")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("websocket server shutdown error")
	}
	if backfillService != nil {
		if err := backfillService.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("backfill shutdown error")
		}
	}
	cancel()

	log.Infof("%s stopped", serviceName)
}

// connectRedis retries while Redis comes up alongside the service.
func connectRedis(url string, log *logrus.Logger) *cache.RedisCache {
	for i := 1; ; i++ {
		redisCache, err := cache.NewRedisCache(url)
		if err == nil {
			return redisCache
		}
		if i >= connectAttempts {
			log.WithError(err).Fatalf("failed to connect to Redis after %d attempts", connectAttempts)
		}
		log.WithError(err).WithField("attempt", i).Warnf("Redis connection failed, retrying in %s", connectDelay)
		time.Sleep(connectDelay)
	}
}
