package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klubhuset/backend/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client is the middleman between one websocket connection and the hub
type Client struct {
	id          model.ConnectionID
	conn        *websocket.Conn
	send        chan []byte
	logger      *slog.Logger
	connectedAt time.Time
}

func newClient(id model.ConnectionID, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		logger:      logger.With(slog.String("conn_id", string(id))),
		connectedAt: time.Now(),
	}
}

// readPump pumps inbound messages from the websocket into the dispatch
// callback. It runs on its own goroutine; onClose fires exactly once
// when the connection goes away.
func (c *Client) readPump(dispatch func(model.ConnectionID, model.Envelope), onClose func(model.ConnectionID)) {
	defer func() {
		onClose(c.id)
		_ = c.conn.Close()
		c.logger.Info("connection closed",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var envelope model.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.logger.Warn("discarding malformed message", slog.String("error", err.Error()))
			continue
		}
		dispatch(c.id, envelope)
	}
}

// writePump pumps messages from the send channel to the websocket,
// keeping the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
