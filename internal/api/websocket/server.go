package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/backfill"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server serves backfill progress over websockets
type Server struct {
	server *http.Server
	hub    *Hub
	log    *logrus.Entry
}

// NewServer creates a new WebSocket server around hub
func NewServer(hub *Hub, logger *logrus.Logger) *Server {
	return &Server{
		hub: hub,
		log: logger.WithField("component", "ws-server"),
	}
}

// Handler returns the websocket routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/backfill", s.handleBackfill)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start listens on port until Shutdown. The hub must already be running.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: s.Handler(),
	}

	s.log.WithField("port", port).Info("websocket server listening")
	return s.server.ListenAndServe()
}

// handleBackfill upgrades the connection and subscribes it to progress
// events. ?job_id= narrows the subscription to one job.
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	client := &Client{
		ID:    uuid.New().String(),
		hub:   s.hub,
		conn:  conn,
		send:  make(chan backfill.ProgressEvent, sendBufferSize),
		jobID: r.URL.Query().Get("job_id"),
	}

	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
