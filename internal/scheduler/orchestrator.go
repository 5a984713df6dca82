package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/pbp"
)

// Enqueuer queues backfill jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
}

// Config holds scheduler configuration
type Config struct {
	CurrentSeason int
	SeasonSync    string // cron spec for the weekly season sync
	TeamWarm      string // cron spec for warming the team-name cache
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig(season int) Config {
	return Config{
		CurrentSeason: season,
		SeasonSync:    "0 6 * * 2", // Tuesday morning, after Monday night
		TeamWarm:      "30 5 * * *",
	}
}

// JobInfo tracks one scheduled job.
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type scheduledJob struct {
	entryID cron.EntryID
	run     func(ctx context.Context) error
}

// Orchestrator enqueues the current season's new games on a schedule.
type Orchestrator struct {
	cron     *cron.Cron
	config   Config
	backfill Enqueuer
	teams    pbp.TeamNameResolver
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	jobs      map[string]*JobInfo
	scheduled map[string]scheduledJob
	running   bool
}

// NewOrchestrator creates a new scheduler orchestrator. teams may be nil.
func NewOrchestrator(config Config, backfill Enqueuer, teams pbp.TeamNameResolver, logger *logrus.Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cron:      cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger))),
		config:    config,
		backfill:  backfill,
		teams:     teams,
		log:       logger.WithField("component", "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*JobInfo),
		scheduled: make(map[string]scheduledJob),
	}
}

// Start registers the jobs and starts the cron scheduler.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("scheduler is already running")
	}

	if err := o.addJob("season_sync", o.config.SeasonSync, "Season box score sync", o.syncSeason); err != nil {
		return err
	}
	if o.teams != nil {
		if err := o.addJob("team_names", o.config.TeamWarm, "Team name cache warm", o.warmTeamNames); err != nil {
			return err
		}
	}

	o.cron.Start()
	o.running = true
	o.log.WithField("season", o.config.CurrentSeason).Info("scheduler started")
	return nil
}

// Stop stops the cron scheduler, waiting briefly for running jobs.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	// Running jobs take o.mu when they finish, so it must not be held here.
	ctx := o.cron.Stop()
	select {
	case <-ctx.Done():
		o.log.Info("cron scheduler stopped gracefully")
	case <-time.After(5 * time.Second):
		o.log.Warn("cron scheduler stop timed out")
	}

	o.cancel()
}

// addJob must be called with o.mu held.
func (o *Orchestrator) addJob(id, schedule, name string, run func(ctx context.Context) error) error {
	entryID, err := o.cron.AddFunc(schedule, func() {
		o.runJob(id)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", id, err)
	}

	o.scheduled[id] = scheduledJob{entryID: entryID, run: run}
	o.jobs[id] = &JobInfo{
		ID:       id,
		Name:     name,
		Schedule: schedule,
		Status:   "scheduled",
	}
	return nil
}

// RunNow runs a registered job immediately.
func (o *Orchestrator) RunNow(id string) error {
	o.mu.Lock()
	_, ok := o.scheduled[id]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", id)
	}
	o.runJob(id)
	return nil
}

func (o *Orchestrator) runJob(id string) {
	o.mu.Lock()
	job := o.scheduled[id]
	info := o.jobs[id]
	info.Status = "running"
	o.mu.Unlock()

	start := time.Now()
	err := job.run(o.ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	info.LastRun = start
	info.Duration = time.Since(start)
	info.RunCount++
	info.NextRun = o.cron.Entry(job.entryID).Next
	if err != nil {
		info.ErrorCount++
		info.LastError = err.Error()
		info.Status = "failed"
		o.log.WithError(err).WithField("job", id).Error("scheduled job failed")
		return
	}
	info.LastError = ""
	info.Status = "ok"
	o.log.WithFields(logrus.Fields{"job": id, "duration": info.Duration.String()}).Info("scheduled job finished")
}

func (o *Orchestrator) syncSeason(ctx context.Context) error {
	job, err := o.backfill.Enqueue(ctx, backfill.Request{Season: o.config.CurrentSeason, SkipBuilt: true})
	if err != nil {
		return fmt.Errorf("enqueue %d season sync: %w", o.config.CurrentSeason, err)
	}
	o.log.WithField("job_id", job.JobID).Info("queued season sync")
	return nil
}

func (o *Orchestrator) warmTeamNames(ctx context.Context) error {
	_, err := o.teams.TeamNames(ctx, o.config.CurrentSeason)
	return err
}

// Jobs returns a snapshot of the scheduled jobs, sorted by ID.
func (o *Orchestrator) Jobs() []JobInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]JobInfo, 0, len(o.jobs))
	for id, info := range o.jobs {
		// Next is only computed once the cron is running.
		if next := o.cron.Entry(o.scheduled[id].entryID).Next; !next.IsZero() {
			info.NextRun = next
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
