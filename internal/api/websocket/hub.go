package websocket

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/gridiron/internal/backfill"
)

// Hub maintains the set of active clients and broadcasts backfill progress
// to them. It satisfies backfill.Broadcaster.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan backfill.ProgressEvent
	register   chan *Client
	unregister chan *Client

	log *logrus.Entry

	totalMessages int64
	metricsMu     sync.Mutex
}

// NewHub creates a new Hub instance
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan backfill.ProgressEvent, 1000),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logger.WithField("component", "ws-hub"),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Broadcast queues an event for every matching client. Events are dropped
// when the queue is full.
func (h *Hub) Broadcast(event backfill.ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.log.WithField("job_id", event.JobID).Warn("broadcast buffer full, dropping event")
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.log.WithFields(logrus.Fields{"client_id": c.ID, "clients": len(h.clients)}).Info("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.WithFields(logrus.Fields{"client_id": c.ID, "clients": len(h.clients)}).Info("client disconnected")
	}
}

func (h *Hub) broadcastEvent(event backfill.ProgressEvent) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := false
	for _, c := range clients {
		if !c.matches(event) {
			continue
		}
		if c.trySend(event) {
			sent = true
			continue
		}
		h.log.WithField("client_id", c.ID).Warn("client buffer full, disconnecting")
		c := c // per-iteration copy (go1.21 loop semantics)
		go func() { h.unregister <- c }()
	}

	if sent {
		h.metricsMu.Lock()
		h.totalMessages++
		h.metricsMu.Unlock()
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// TotalMessages counts broadcast events delivered to at least one client.
func (h *Hub) TotalMessages() int64 {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.totalMessages
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
