//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"reflect"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// NamedWorker tells apart several workers of the same type in the supervisor logs.
type NamedWorker interface {
	Worker
	Name() string
}

// GetWorkerName prefers the name a worker gives itself, then falls back to its type name.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	if named, ok := w.(NamedWorker); ok && named.Name() != "" {
		return named.Name()
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Broadcaster is the send capability of the transport.
// Recipients of a room send are resolved by the caller, the transport only delivers.
type Broadcaster interface {
	SendToRoom(ctx context.Context, room domain.RoomName, recipients []domain.SessionID, e event.Outbound) error
	SendToSession(ctx context.Context, sessionID domain.SessionID, e event.Outbound) error
}

// EventHandler is what the transport drives for every connection.
type EventHandler interface {
	Connect(ctx context.Context, sessionID domain.SessionID, address string) error
	Disconnect(ctx context.Context, sessionID domain.SessionID)
	Handle(ctx context.Context, sessionID domain.SessionID, name event.Name, payload json.RawMessage) error
}

// StatsProvider computes the diagnostics rollup.
type StatsProvider interface {
	Stats() (domain.ChatStats, error)
}
