package rest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/backfill"
	"github.com/fortuna/gridiron/internal/ingest/pfr"
	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/scheduler"
	"github.com/fortuna/gridiron/internal/service"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleFeatureSet() *pbp.GameFeatureSet {
	meta := pbp.GameMetadata{
		BoxscoreID:     "202309070kan",
		HomeTeamID:     "KAN",
		AwayTeamID:     "DET",
		Season:         2023,
		PointSpread:    -6.5,
		FinalHomeScore: 20,
		FinalAwayScore: 21,
	}
	table := pbp.PlayTable{Plays: []pbp.RawPlay{
		{BoxscoreID: meta.BoxscoreID, Description: "PattRi00 kicks off 65 yards, touchback", QuarterDisplay: "1", ClockRemaining: "15:00", Location: "DET 35", AwayScore: "0", HomeScore: "0"},
		{BoxscoreID: meta.BoxscoreID, Description: "MahoPa00 pass complete short left to KelcTr00 for 8 yards", QuarterDisplay: "1", ClockRemaining: "14:55", Down: "1", YardsToGo: "10", Location: "KAN 25", AwayScore: "0", HomeScore: "0", IsHomeTeamRow: true},
	}}
	fs := pbp.Assemble(meta, table, pbp.Roster{"MahoPa00": "KAN"}, nil)
	return &fs
}

type fakePlays struct {
	fs        *pbp.GameFeatureSet
	err       error
	refreshed bool
	season    []string
}

func (f *fakePlays) Get(_ context.Context, boxscoreID string, refresh bool) (*pbp.GameFeatureSet, error) {
	f.refreshed = refresh
	if f.err != nil {
		return nil, f.err
	}
	return f.fs, nil
}

func (f *fakePlays) SeasonGames(_ context.Context, season int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.season, nil
}

type fakeBackfill struct {
	requests []backfill.Request
	err      error
	summary  *backfill.StatusSummary
}

func (f *fakeBackfill) Enqueue(_ context.Context, req backfill.Request) (*backfill.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &backfill.Job{JobID: "job-1", JobType: backfill.JobTypeGame, Status: backfill.JobStatusQueued, BoxscoreIDs: req.BoxscoreIDs}, nil
}

func (f *fakeBackfill) GetStatus(context.Context) (*backfill.StatusSummary, error) {
	return f.summary, nil
}

type fakeScheduler struct {
	ran []string
}

func (f *fakeScheduler) Jobs() []scheduler.JobInfo {
	return []scheduler.JobInfo{{ID: "season_sync", Name: "Season sync", Schedule: "0 6 * * 2"}}
}

func (f *fakeScheduler) RunNow(id string) error {
	if id != "season_sync" {
		return fmt.Errorf("unknown job %s", id)
	}
	f.ran = append(f.ran, id)
	return nil
}

func newTestRouter(plays PlayService, bf BackfillService, sched JobScheduler, checks map[string]HealthCheck) http.Handler {
	var bh *BackfillHandler
	if bf != nil {
		bh = NewBackfillHandler(bf)
	}
	var sh *SchedulerHandler
	if sched != nil {
		sh = NewSchedulerHandler(sched)
	}
	return NewRouter(NewHandler(plays, checks), bh, sh, quietLogger())
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakePlays{}, nil, nil, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	rec := serve(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"postgres": "ok"}, body["dependencies"])

	router = newTestRouter(&fakePlays{}, nil, nil, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec = serve(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestGetGamePlays(t *testing.T) {
	plays := &fakePlays{fs: sampleFeatureSet()}
	router := newTestRouter(plays, nil, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/games/202309070kan/plays?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, plays.refreshed)

	var fs pbp.GameFeatureSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fs))
	assert.Equal(t, "202309070kan", fs.Game.BoxscoreID)
	assert.Len(t, fs.Plays, 2)
}

func TestGetGamePlaysCSV(t *testing.T) {
	router := newTestRouter(&fakePlays{fs: sampleFeatureSet()}, nil, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/games/202309070kan/plays.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "202309070kan.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, pbp.Columns(), rows[0])
	assert.Equal(t, "202309070kan", rows[1][0])
}

func TestGetGameReport(t *testing.T) {
	router := newTestRouter(&fakePlays{fs: sampleFeatureSet()}, nil, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/games/202309070kan/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report, ok := decode(t, rec)["report"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), report["plays"])
}

func TestGameErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid id", fmt.Errorf("%w: %q", service.ErrInvalidGameID, "nope"), http.StatusBadRequest},
		{"missing game", fmt.Errorf("https://example.test/x.htm: %w", pfr.ErrNotFound), http.StatusNotFound},
		{"source down", fmt.Errorf("x: %w", pfr.ErrConnRefused), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakePlays{err: tt.err}, nil, nil, nil)
			rec := serve(t, router, http.MethodGet, "/api/v1/games/202309070kan/plays", "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), decode(t, rec)["details"])
		})
	}
}

func TestGetSeasonGames(t *testing.T) {
	router := newTestRouter(&fakePlays{season: []string{"202309070kan", "202309100atl"}}, nil, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/seasons/2023/games", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])

	rec = serve(t, router, http.MethodGet, "/api/v1/seasons/23/games", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackfillRequest(t *testing.T) {
	bf := &fakeBackfill{}
	router := newTestRouter(&fakePlays{}, bf, nil, nil)

	rec := serve(t, router, http.MethodPost, "/api/v1/backfill", `{"boxscore_ids":["202309070kan"],"boxscore_id":"202309100atl","skip_built":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, bf.requests, 1)
	assert.Equal(t, []string{"202309070kan", "202309100atl"}, bf.requests[0].BoxscoreIDs)
	assert.True(t, bf.requests[0].SkipBuilt)

	job, ok := decode(t, rec)["job"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "job-1", job["job_id"])

	rec = serve(t, router, http.MethodPost, "/api/v1/backfill", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bf.err = errors.New("unable to determine job type from request")
	rec = serve(t, router, http.MethodPost, "/api/v1/backfill", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfillStatus(t *testing.T) {
	bf := &fakeBackfill{summary: &backfill.StatusSummary{}}
	router := newTestRouter(&fakePlays{}, bf, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/backfill/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "idle", body["status"])
	assert.Equal(t, []interface{}{}, body["history"])

	active := &backfill.Job{JobID: "job-2", JobType: backfill.JobTypeSeason, Status: backfill.JobStatusRunning, ProgressCurrent: 3, ProgressTotal: 10}
	active.Season.Int32, active.Season.Valid = 2023, true
	active.FailedGames = []string{"202309100atl"}
	bf.summary = &backfill.StatusSummary{ActiveJob: active, History: []*backfill.Job{active}}

	rec = serve(t, router, http.MethodGet, "/api/v1/backfill/status", "")
	body = decode(t, rec)
	assert.Equal(t, "running", body["status"])
	activeJob := body["active_job"].(map[string]interface{})
	assert.Equal(t, float64(2023), activeJob["season"])
	assert.Equal(t, []interface{}{"202309100atl"}, activeJob["failed_games"])
}

func TestBackfillRoutesAbsentWithoutService(t *testing.T) {
	router := newTestRouter(&fakePlays{}, nil, nil, nil)
	rec := serve(t, router, http.MethodGet, "/api/v1/backfill/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedulerJobs(t *testing.T) {
	sched := &fakeScheduler{}
	router := newTestRouter(&fakePlays{}, nil, sched, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/scheduler/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["jobs"], 1)

	rec = serve(t, router, http.MethodPost, "/api/v1/scheduler/jobs/season_sync/run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"season_sync"}, sched.ran)

	rec = serve(t, router, http.MethodPost, "/api/v1/scheduler/jobs/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type panicPlays struct{ fakePlays }

func (panicPlays) Get(context.Context, string, bool) (*pbp.GameFeatureSet, error) {
	panic("boom")
}

func TestRecoveryMiddleware(t *testing.T) {
	router := newTestRouter(&panicPlays{}, nil, nil, nil)
	rec := serve(t, router, http.MethodGet, "/api/v1/games/202309070kan/plays", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&fakePlays{}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/games/202309070kan/plays", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
