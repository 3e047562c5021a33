package chat

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait    = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait     = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod   = (pongWait * 9) / 10 // Must be less than pongWait.
	frameTimeout = 10 * time.Second    // Upper bound for executing one inbound frame.
)

type ClientConfig struct {
	MaxMessageSize int64
	RatePerSecond  float64
	RateBurst      int
}

// Client is the middleman between the websocket connection and a Session.
type Client struct {
	session    *Session
	conn       *websocket.Conn
	manager    *Manager
	dispatcher *Dispatcher
	limiter    *rate.Limiter
	cfg        ClientConfig
	log        *zap.Logger
}

func newLimiter(cfg ClientConfig) *rate.Limiter {
	if cfg.RatePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
}

// ReadPump pumps frames from the websocket connection to the dispatcher.
// Frames of one session run one at a time, in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.manager.Disconnect(c.session)
		c.conn.Close()
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("ws_read_failed", zap.String("session_id", c.session.ID), zap.Error(err))
			}
			return
		}
		if !c.limiter.Allow() {
			c.dispatcher.RateLimited(c.session)
			continue
		}

		// Not tied to the connection: a frame already accepted completes
		// even if the peer goes away.
		ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
		c.dispatcher.Handle(ctx, c.session, raw)
		cancel()
	}
}

// WritePump pumps events from the session to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.session.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The session was closed.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
