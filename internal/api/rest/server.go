package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server represents the REST API server
type Server struct {
	port   string
	server *http.Server
	log    *logrus.Entry
}

// NewRouter builds the route table. backfillHandler and jobs may be nil when
// the service runs without a database.
func NewRouter(handler *Handler, backfillHandler *BackfillHandler, jobs *SchedulerHandler, logger *logrus.Logger) http.Handler {
	log := logger.WithField("component", "rest")
	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(log))
	router.Use(LoggingMiddleware(log))

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Games
	api.HandleFunc("/games/{boxscoreID}/plays", handler.GetGamePlays).Methods("GET")
	api.HandleFunc("/games/{boxscoreID}/plays.csv", handler.GetGamePlaysCSV).Methods("GET")
	api.HandleFunc("/games/{boxscoreID}/report", handler.GetGameReport).Methods("GET")
	api.HandleFunc("/seasons/{season:[0-9]{4}}/games", handler.GetSeasonGames).Methods("GET")

	// Backfill operations
	if backfillHandler != nil {
		api.HandleFunc("/backfill", backfillHandler.HandleBackfillRequest).Methods("POST")
		api.HandleFunc("/backfill/status", backfillHandler.HandleBackfillStatus).Methods("GET")
	}

	if jobs != nil {
		api.HandleFunc("/scheduler/jobs", jobs.ListJobs).Methods("GET")
		api.HandleFunc("/scheduler/jobs/{jobID}/run", jobs.RunJob).Methods("POST")
	}

	return CORSMiddleware(router)
}

// NewServer creates a new REST API server
func NewServer(port string, handler http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		port: port,
		log:  logger.WithField("component", "rest"),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.log.WithField("port", s.port).Info("REST API listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
