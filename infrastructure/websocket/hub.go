// Package websocket carries client events over gorilla websockets.
// One Client per connection, the Hub maps sessions to clients and implements the broadcaster.
package websocket

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const frameOverhead = 1024

type Options struct {
	BufferSize      int
	MaxPayloadBytes int
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongTimeout * 9) / 10
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.MaxPayloadBytes <= 0 {
		o.MaxPayloadBytes = 25 * 1024 * 1024
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	return o
}

type Hub struct {
	mu       sync.RWMutex
	log      *slog.Logger
	handler  contract.EventHandler
	clients  map[domain.SessionID]*Client
	upgrader websocket.Upgrader
	opts     Options
	newID    func() domain.SessionID
}

func NewHub(log *slog.Logger, handler contract.EventHandler, opts Options) *Hub {
	return &Hub{
		log:     log,
		handler: handler,
		clients: make(map[domain.SessionID]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts:  opts.withDefaults(),
		newID: func() domain.SessionID { return domain.SessionID(uuid.NewString()) },
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:   h.newID(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.opts.BufferSize),
	}
	h.register(client)
	go client.writePump()

	// Request context ends with the handler, the connection outlives it
	ctx := context.WithoutCancel(r.Context())
	if err = h.handler.Connect(ctx, client.id, SourceAddress(r)); err != nil {
		h.log.Info("Connection refused", "session", client.id, "error", err)
		h.unregister(client)
		return
	}
	go client.readPump(ctx)
}

// SendToRoom delivers e to every recipient still connected, best effort.
func (h *Hub) SendToRoom(_ context.Context, room domain.RoomName, recipients []domain.SessionID, e event.Outbound) error {
	payload, err := encodeFrame(e)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range recipients {
		if client, ok := h.clients[id]; ok {
			h.push(client, payload, room)
		}
	}
	return nil
}

func (h *Hub) SendToSession(_ context.Context, sessionID domain.SessionID, e event.Outbound) error {
	payload, err := encodeFrame(e)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, errors.ErrNotFound)
	}
	h.push(client, payload, "")
	return nil
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// push must be called with the read lock held, unregister closes send under the write lock.
func (h *Hub) push(client *Client, payload []byte, room domain.RoomName) {
	select {
	case client.send <- payload:
	default:
		h.log.Warn("Send buffer full, message dropped", "session", client.id, "room", room)
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.id] = client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		close(client.send)
	}
}
