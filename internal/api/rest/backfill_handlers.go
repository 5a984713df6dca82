package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/scheduler"
)

// BackfillService is implemented by *backfill.Service.
type BackfillService interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
}

// BackfillHandler proxies API calls to the backfill service.
type BackfillHandler struct {
	service BackfillService
}

// NewBackfillHandler wires the REST layer to the backfill service.
func NewBackfillHandler(service BackfillService) *BackfillHandler {
	return &BackfillHandler{service: service}
}

type apiBackfillRequest struct {
	Season      int      `json:"season"`
	BoxscoreID  string   `json:"boxscore_id"`
	BoxscoreIDs []string `json:"boxscore_ids"`
	SkipBuilt   bool     `json:"skip_built"`
}

// HandleBackfillRequest handles POST /api/v1/backfill
func (h *BackfillHandler) HandleBackfillRequest(w http.ResponseWriter, r *http.Request) {
	var req apiBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	backfillReq := backfill.Request{
		Season:    req.Season,
		SkipBuilt: req.SkipBuilt,
	}
	backfillReq.BoxscoreIDs = append(backfillReq.BoxscoreIDs, req.BoxscoreIDs...)
	if req.BoxscoreID != "" {
		backfillReq.BoxscoreIDs = append(backfillReq.BoxscoreIDs, req.BoxscoreID)
	}

	job, err := h.service.Enqueue(r.Context(), backfillReq)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to enqueue backfill job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleBackfillStatus handles GET /api/v1/backfill/status
func (h *BackfillHandler) HandleBackfillStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *backfill.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"job_type":         job.JobType,
		"status":           job.Status,
		"skip_built":       job.SkipBuilt,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if job.Season.Valid {
		payload["season"] = job.Season.Int32
	}
	if len(job.BoxscoreIDs) > 0 {
		payload["boxscore_ids"] = []string(job.BoxscoreIDs)
	}
	if len(job.FailedGames) > 0 {
		payload["failed_games"] = []string(job.FailedGames)
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}

// JobScheduler is implemented by *scheduler.Orchestrator.
type JobScheduler interface {
	Jobs() []scheduler.JobInfo
	RunNow(id string) error
}

// SchedulerHandler exposes the scheduled jobs.
type SchedulerHandler struct {
	scheduler JobScheduler
}

func NewSchedulerHandler(s JobScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// ListJobs handles GET /api/v1/scheduler/jobs
func (h *SchedulerHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.Jobs(),
	})
}

// RunJob handles POST /api/v1/scheduler/jobs/{jobID}/run
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["jobID"]
	if err := h.scheduler.RunNow(id); err != nil {
		respondError(w, http.StatusNotFound, "Failed to run job", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"job": id, "status": "ran"})
}
