package websocket

import (
	"chat-relay/domain"
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection bound to a session.
type Client struct {
	id   domain.SessionID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump forwards inbound frames to the handler until the connection drops.
// The session is unregistered and disconnected on exit.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.hub.handler.Disconnect(ctx, c.id)
		_ = c.conn.Close()
	}()

	// Frames carry the JSON envelope around the payload
	c.conn.SetReadLimit(int64(c.hub.opts.MaxPayloadBytes) + frameOverhead)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("Websocket read failed", "session", c.id, "error", err)
			}
			return
		}

		frame, err := decodeFrame(message)
		if err != nil {
			c.hub.log.Debug("Invalid frame", "session", c.id, "error", err)
			continue
		}
		if err = c.hub.handler.Handle(ctx, c.id, frame.Event, frame.Data); err != nil {
			c.hub.log.Debug("Event rejected", "session", c.id, "event", frame.Event, "error", err)
		}
	}
}

// writePump drains the send buffer to the connection and keeps it alive with pings.
// Closing send makes it flush what is left, send a close frame and stop.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.Debug("Websocket write failed", "session", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
