package backfill

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// JobType enumerates the supported backfill job variants.
type JobType string

const (
	JobTypeSeason JobType = "season"
	JobTypeGame   JobType = "game"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job models the database representation of a backfill job.
type Job struct {
	JobID           string         `json:"job_id"`
	JobType         JobType        `json:"job_type"`
	Season          sql.NullInt32  `json:"-"`
	BoxscoreIDs     pq.StringArray `json:"boxscore_ids,omitempty"`
	SkipBuilt       bool           `json:"skip_built"`
	Status          JobStatus      `json:"status"`
	StatusMessage   sql.NullString `json:"-"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	FailedGames     pq.StringArray `json:"failed_games,omitempty"`
	LastError       sql.NullString `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	StartedAt       sql.NullTime   `json:"-"`
	CompletedAt     sql.NullTime   `json:"-"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	cpy.BoxscoreIDs = append(pq.StringArray(nil), j.BoxscoreIDs...)
	cpy.FailedGames = append(pq.StringArray(nil), j.FailedGames...)
	return &cpy
}

// Spec converts a stored job to the work the runner performs.
func (j *Job) Spec() (JobSpec, error) {
	spec := JobSpec{Type: j.JobType, SkipBuilt: j.SkipBuilt}
	switch j.JobType {
	case JobTypeGame:
		if len(j.BoxscoreIDs) == 0 {
			return spec, fmt.Errorf("game job missing boxscore_ids")
		}
		spec.BoxscoreIDs = j.BoxscoreIDs
	case JobTypeSeason:
		if !j.Season.Valid {
			return spec, fmt.Errorf("season job missing season")
		}
		spec.Season = int(j.Season.Int32)
	default:
		return spec, fmt.Errorf("unknown job type %s", j.JobType)
	}
	return spec, nil
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type        JobType
	Season      int
	BoxscoreIDs []string
	SkipBuilt   bool
	DryRun      bool
}

// Result summarizes a finished run.
type Result struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed,omitempty"`
}

// Reporter receives lifecycle callbacks from the runner. Calls are
// serialized by the runner.
type Reporter interface {
	OnJobStart(spec JobSpec, total int)
	OnGameProcessed(boxscoreID string, current, total int)
	OnGameFailed(boxscoreID string, err error, current, total int)
	OnJobComplete(result Result)
	OnJobError(err error)
}

// EventType tags a progress event.
type EventType string

const (
	EventJobQueued    EventType = "queued"
	EventJobStarted   EventType = "job_started"
	EventGameDone     EventType = "game_processed"
	EventGameFailed   EventType = "game_failed"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
)

// ProgressEvent is broadcast to websocket clients while a job runs.
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	Type       EventType `json:"type"`
	BoxscoreID string    `json:"boxscore_id,omitempty"`
	Message    string    `json:"message"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Timestamp  time.Time `json:"timestamp"`
}

// Broadcaster fans progress events out to listeners.
type Broadcaster interface {
	Broadcast(event ProgressEvent)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
