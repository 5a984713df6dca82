package backfill

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryJobs struct {
	mu     sync.Mutex
	jobs   []*Job
	events []EventType
}

func (m *memoryJobs) find(id string) *Job {
	for _, j := range m.jobs {
		if j.JobID == id {
			return j
		}
	}
	return nil
}

func (m *memoryJobs) CreateJob(_ context.Context, job *Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := job.Copy()
	stored.CreatedAt = time.Now()
	m.jobs = append(m.jobs, stored)
	return stored.Copy(), nil
}

func (m *memoryJobs) UpdateStatus(_ context.Context, id string, status JobStatus, message string, lastErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.find(id)
	j.Status = status
	j.StatusMessage.String, j.StatusMessage.Valid = message, true
	if lastErr != nil {
		j.LastError.String, j.LastError.Valid = lastErr.Error(), true
	}
	return nil
}

func (m *memoryJobs) UpdateProgress(_ context.Context, id string, current, total int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.find(id)
	j.ProgressCurrent, j.ProgressTotal = current, total
	j.StatusMessage.String, j.StatusMessage.Valid = message, true
	return nil
}

func (m *memoryJobs) RecordFailures(_ context.Context, id string, failed []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.find(id).FailedGames = failed
	return nil
}

func (m *memoryJobs) AppendEvent(_ context.Context, _ string, eventType EventType, _ string, _, _ *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return nil
}

func (m *memoryJobs) ResetStuckJobs(context.Context) error { return nil }

func (m *memoryJobs) MarkNextJobRunning(context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == JobStatusQueued {
			j.Status = JobStatusRunning
			return j.Copy(), nil
		}
	}
	return nil, nil
}

func (m *memoryJobs) GetActiveJob(context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == JobStatusRunning {
			return j.Copy(), nil
		}
	}
	return nil, nil
}

func (m *memoryJobs) ListRecentJobs(_ context.Context, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Job
	for i := len(m.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.jobs[i].Copy())
	}
	return out, nil
}

func (m *memoryJobs) status(id string) JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(id).Status
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (e *eventLog) Broadcast(event ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *eventLog) types() []EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []EventType
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    JobType
		wantErr bool
	}{
		{"games", Request{BoxscoreIDs: []string{"202309070kan"}}, JobTypeGame, false},
		{"season", Request{Season: 2023}, JobTypeSeason, false},
		{"empty", Request{}, "", true},
		{"bad id", Request{BoxscoreIDs: []string{"kan"}}, JobTypeGame, true},
		{"bad season", Request{Season: 23}, JobTypeSeason, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, _ := tt.req.DeriveType()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceEnqueue(t *testing.T) {
	repo := &memoryJobs{}
	svc := NewService(repo, NewRunner(&fakeGames{}, 1, quietLogger()), nil, quietLogger())
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, Request{BoxscoreIDs: []string{"202309070kan", "202309070kan", "202309100atl"}})
	require.NoError(t, err)
	_, err = uuid.Parse(job.JobID)
	assert.NoError(t, err)
	assert.Equal(t, JobTypeGame, job.JobType)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 2, job.ProgressTotal)
	assert.Equal(t, []EventType{EventJobQueued}, repo.events)

	season, err := svc.Enqueue(ctx, Request{Season: 2023, SkipBuilt: true})
	require.NoError(t, err)
	assert.True(t, season.Season.Valid)
	assert.Equal(t, int32(2023), season.Season.Int32)

	_, err = svc.Enqueue(ctx, Request{})
	assert.Error(t, err)

	status, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, status.ActiveJob)
	assert.Len(t, status.History, 2)
}

func TestServiceExecuteJob(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failure completes", func(t *testing.T) {
		repo := &memoryJobs{}
		events := &eventLog{}
		games := &fakeGames{fail: map[string]bool{"202309100atl": true}}
		svc := NewService(repo, NewRunner(games, 2, quietLogger()), events, quietLogger())

		job, err := svc.Enqueue(ctx, Request{BoxscoreIDs: []string{"202309070kan", "202309100atl"}})
		require.NoError(t, err)
		claimed, err := repo.MarkNextJobRunning(ctx)
		require.NoError(t, err)

		svc.executeJob(claimed)

		assert.Equal(t, JobStatusCompleted, repo.status(job.JobID))
		assert.Equal(t, []string{"202309100atl"}, []string(repo.find(job.JobID).FailedGames))

		types := events.types()
		require.NotEmpty(t, types)
		assert.Equal(t, EventJobStarted, types[0])
		assert.Equal(t, EventJobCompleted, types[len(types)-1])
		assert.Contains(t, types, EventGameFailed)
		assert.Contains(t, types, EventGameDone)
	})

	t.Run("all failed", func(t *testing.T) {
		repo := &memoryJobs{}
		games := &fakeGames{fail: map[string]bool{"202309100atl": true}}
		svc := NewService(repo, NewRunner(games, 1, quietLogger()), nil, quietLogger())

		job, err := svc.Enqueue(ctx, Request{BoxscoreIDs: []string{"202309100atl"}})
		require.NoError(t, err)
		claimed, _ := repo.MarkNextJobRunning(ctx)
		svc.executeJob(claimed)

		assert.Equal(t, JobStatusFailed, repo.status(job.JobID))
	})

	t.Run("invalid spec", func(t *testing.T) {
		repo := &memoryJobs{}
		svc := NewService(repo, NewRunner(&fakeGames{}, 1, quietLogger()), nil, quietLogger())

		job := &Job{JobID: uuid.New().String(), JobType: JobTypeSeason, Status: JobStatusRunning}
		repo.jobs = append(repo.jobs, job)
		svc.executeJob(job.Copy())

		assert.Equal(t, JobStatusFailed, repo.status(job.JobID))
	})
}

func TestServiceWorkerLoop(t *testing.T) {
	repo := &memoryJobs{}
	games := &fakeGames{}
	svc := NewService(repo, NewRunner(games, 1, quietLogger()), nil, quietLogger())
	svc.pollInterval = 5 * time.Millisecond

	job, err := svc.Enqueue(context.Background(), Request{BoxscoreIDs: []string{"202309070kan"}})
	require.NoError(t, err)

	svc.Start()
	assert.Eventually(t, func() bool {
		return repo.status(job.JobID) == JobStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}
