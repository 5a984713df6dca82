package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/fortuna/gridiron/internal/backfill"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBufferSize = 256
)

// Client is one websocket connection. A non-empty jobID limits it to the
// events of that job.
type Client struct {
	ID    string
	hub   *Hub
	conn  *websocket.Conn
	send  chan backfill.ProgressEvent
	jobID string
}

func (c *Client) matches(event backfill.ProgressEvent) bool {
	return c.jobID == "" || c.jobID == event.JobID
}

func (c *Client) trySend(event backfill.ProgressEvent) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Clients do not send anything meaningful.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithField("client_id", c.ID).Debug("unexpected close")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
