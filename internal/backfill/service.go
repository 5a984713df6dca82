package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/ingest/pfr"
)

// Request represents a backfill invocation request.
type Request struct {
	Season      int      `json:"season,omitempty"`
	BoxscoreIDs []string `json:"boxscore_ids,omitempty"`
	SkipBuilt   bool     `json:"skip_built,omitempty"`
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if len(r.BoxscoreIDs) > 0 {
		return JobTypeGame, nil
	}
	if r.Season > 0 {
		return JobTypeSeason, nil
	}
	return "", fmt.Errorf("unable to determine job type from request")
}

// Validate checks the request before it is queued.
func (r Request) Validate() error {
	if _, err := r.DeriveType(); err != nil {
		return err
	}
	for _, id := range r.BoxscoreIDs {
		if !pfr.ValidBoxscoreID(id) {
			return fmt.Errorf("invalid boxscore id %q", id)
		}
	}
	if r.Season != 0 && (r.Season < 1920 || r.Season > 2100) {
		return fmt.Errorf("invalid season %d", r.Season)
	}
	return nil
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo        JobStore
	runner      *Runner
	broadcaster Broadcaster

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// NewService constructs a Service. Call Start to launch the worker.
// broadcaster may be nil.
func NewService(repo JobStore, runner *Runner, broadcaster Broadcaster, logger *logrus.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:         repo,
		runner:       runner,
		broadcaster:  broadcaster,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		log:          logger.WithField("component", "backfill"),
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.log.WithError(err).Warn("failed to reset jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops workers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	jobType, _ := req.DeriveType()

	job := &Job{
		JobID:         uuid.New().String(),
		JobType:       jobType,
		SkipBuilt:     req.SkipBuilt,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
	}
	switch jobType {
	case JobTypeGame:
		job.BoxscoreIDs = dedupe(req.BoxscoreIDs)
		job.ProgressTotal = len(job.BoxscoreIDs)
	case JobTypeSeason:
		job.Season = sql.NullInt32{Int32: int32(req.Season), Valid: true}
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, stored.JobID, EventJobQueued, "Job queued", nil, nil)
	s.log.WithFields(logrus.Fields{"job_id": stored.JobID, "job_type": stored.JobType}).Info("job queued")

	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Error("claim job error")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

func (s *Service) executeJob(job *Job) {
	log := s.log.WithField("job_id", job.JobID)

	spec, err := job.Spec()
	if err != nil {
		log.WithError(err).Error("invalid job spec")
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Invalid job", err)
		s.broadcast(ProgressEvent{JobID: job.JobID, Type: EventJobFailed, Message: err.Error()})
		return
	}

	reporter := &jobReporter{service: s, jobID: job.JobID}
	result, err := s.runner.Run(s.ctx, spec, reporter)

	if len(result.Failed) > 0 {
		_ = s.repo.RecordFailures(s.ctx, job.JobID, result.Failed)
	}

	// Status writes use a fresh context so a shutdown still records the outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case errors.Is(err, context.Canceled):
		_ = s.repo.UpdateStatus(ctx, job.JobID, JobStatusCancelled, "Cancelled by shutdown", err)
	case err != nil:
		_ = s.repo.UpdateStatus(ctx, job.JobID, JobStatusFailed, "Job failed", err)
	case result.Total > 0 && result.Succeeded == 0:
		_ = s.repo.UpdateStatus(ctx, job.JobID, JobStatusFailed, "Every game failed", nil)
	case len(result.Failed) > 0:
		msg := fmt.Sprintf("Completed with %d of %d games failed", len(result.Failed), result.Total)
		_ = s.repo.UpdateStatus(ctx, job.JobID, JobStatusCompleted, msg, nil)
	default:
		_ = s.repo.UpdateStatus(ctx, job.JobID, JobStatusCompleted, "Job completed", nil)
	}

	log.WithFields(logrus.Fields{
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    len(result.Failed),
	}).Info("job finished")
}

func (s *Service) broadcast(event ProgressEvent) {
	if s.broadcaster == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.broadcaster.Broadcast(event)
}

type jobReporter struct {
	service *Service
	jobID   string
	total   int
}

func (r *jobReporter) OnJobStart(spec JobSpec, total int) {
	r.total = total
	msg := fmt.Sprintf("Building %d games", total)
	_ = r.service.repo.UpdateProgress(r.service.ctx, r.jobID, 0, total, msg)
	r.service.broadcast(ProgressEvent{JobID: r.jobID, Type: EventJobStarted, Message: msg, Total: total})
}

func (r *jobReporter) OnGameProcessed(boxscoreID string, current, total int) {
	msg := fmt.Sprintf("Game %s processed (%d/%d)", boxscoreID, current, total)
	_ = r.service.repo.UpdateProgress(r.service.ctx, r.jobID, current, total, msg)
	r.service.broadcast(ProgressEvent{
		JobID: r.jobID, Type: EventGameDone, BoxscoreID: boxscoreID,
		Message: msg, Current: current, Total: total,
	})
}

func (r *jobReporter) OnGameFailed(boxscoreID string, err error, current, total int) {
	msg := fmt.Sprintf("Game %s failed: %v", boxscoreID, err)
	_ = r.service.repo.UpdateProgress(r.service.ctx, r.jobID, current, total, msg)
	_ = r.service.repo.AppendEvent(r.service.ctx, r.jobID, EventGameFailed, msg, &current, &total)
	r.service.broadcast(ProgressEvent{
		JobID: r.jobID, Type: EventGameFailed, BoxscoreID: boxscoreID,
		Message: msg, Current: current, Total: total,
	})
}

func (r *jobReporter) OnJobComplete(result Result) {
	msg := fmt.Sprintf("%d of %d games built", result.Succeeded, result.Total)
	_ = r.service.repo.UpdateProgress(r.service.ctx, r.jobID, result.Total, result.Total, msg)
	r.service.broadcast(ProgressEvent{
		JobID: r.jobID, Type: EventJobCompleted, Message: msg,
		Current: result.Total, Total: result.Total,
	})
}

func (r *jobReporter) OnJobError(err error) {
	_ = r.service.repo.AppendEvent(r.service.ctx, r.jobID, EventJobFailed, err.Error(), nil, nil)
	r.service.broadcast(ProgressEvent{JobID: r.jobID, Type: EventJobFailed, Message: err.Error(), Total: r.total})
}
