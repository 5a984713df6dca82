package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sony/gobreaker"

	"github.com/fortuna/gridiron/internal/ingest/pfr"
	"github.com/fortuna/gridiron/internal/pbp"
	"github.com/fortuna/gridiron/internal/service"
)

// PlayService is the part of service.PlayService the handlers use.
type PlayService interface {
	Get(ctx context.Context, boxscoreID string, refresh bool) (*pbp.GameFeatureSet, error)
	SeasonGames(ctx context.Context, season int) ([]string, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler contains dependencies for HTTP handlers
type Handler struct {
	plays  PlayService
	checks map[string]HealthCheck
}

// NewHandler creates a new handler. checks are reported by /health under
// their map key.
func NewHandler(plays PlayService, checks map[string]HealthCheck) *Handler {
	return &Handler{plays: plays, checks: checks}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"service":      "gridiron",
		"dependencies": deps,
	})
}

func (h *Handler) featureSet(w http.ResponseWriter, r *http.Request) (*pbp.GameFeatureSet, bool) {
	boxscoreID := mux.Vars(r)["boxscoreID"]
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	fs, err := h.plays.Get(r.Context(), boxscoreID, refresh)
	if err != nil {
		respondError(w, statusFor(err), fmt.Sprintf("Failed to load game %s", boxscoreID), err)
		return nil, false
	}
	return fs, true
}

// GetGamePlays returns the full feature set of a game.
func (h *Handler) GetGamePlays(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.featureSet(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, fs)
}

// GetGamePlaysCSV returns the flat play table of a game.
func (h *Handler) GetGamePlaysCSV(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.featureSet(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fs.Game.BoxscoreID+".csv"))
	w.WriteHeader(http.StatusOK)
	// Headers are already sent; a failed write can only be dropped.
	_ = pbp.WriteCSV(w, fs.Plays)
}

// GetGameReport returns the build report of a game.
func (h *Handler) GetGameReport(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.featureSet(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game":   fs.Game,
		"report": fs.Report,
	})
}

// GetSeasonGames lists the played box scores of a season.
func (h *Handler) GetSeasonGames(w http.ResponseWriter, r *http.Request) {
	season, err := strconv.Atoi(mux.Vars(r)["season"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid season", err)
		return
	}

	ids, err := h.plays.SeasonGames(r.Context(), season)
	if err != nil {
		respondError(w, statusFor(err), fmt.Sprintf("Failed to list %d games", season), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"season":       season,
		"count":        len(ids),
		"boxscore_ids": ids,
	})
}

// statusFor maps build errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidGameID):
		return http.StatusBadRequest
	case errors.Is(err, pfr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, pfr.ErrConnRefused):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
