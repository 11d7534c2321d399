// Package runtime holds the live state of the relay (sessions, room membership)
// and the orchestrator routing client events to it.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const defaultMaxPayloadBytes = 25 * 1024 * 1024

// Envelope is one outbound event and where it goes.
// Room sends carry the recipients resolved when the envelope was built.
type Envelope struct {
	Room       domain.RoomName
	Recipients []domain.SessionID
	To         domain.SessionID
	Event      event.Outbound
}

func (e Envelope) IsRoom() bool {
	return e.Room != ""
}

// Orchestrator applies client events to the presence registry, the membership index
// and the message store. One event is handled at a time, sends happen once the state lock is released.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	presence        *Presence
	registry        *Registry
	repository      repositories.IMessageRepository
	stats           contract.StatsProvider
	broadcaster     contract.Broadcaster
	moderator       *moderation.Moderator
	validate        *validator.Validate
	routes          map[event.Name]route
	maxPayloadBytes int
	now             func() time.Time
}

type Option func(o *Orchestrator)

// WithModerator censors text messages before they are stored.
func WithModerator(m *moderation.Moderator) Option {
	return func(o *Orchestrator) { o.moderator = m }
}

func WithMaxPayloadBytes(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPayloadBytes = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.presence.now = now
	}
}

func NewOrchestrator(log *slog.Logger, presence *Presence, registry *Registry,
	repository repositories.IMessageRepository, stats contract.StatsProvider,
	broadcaster contract.Broadcaster, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:             log,
		presence:        presence,
		registry:        registry,
		repository:      repository,
		stats:           stats,
		broadcaster:     broadcaster,
		validate:        validator.New(),
		maxPayloadBytes: defaultMaxPayloadBytes,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.routes = o.routingTable()
	return o
}

// SetBroadcaster plugs the transport once it exists, the transport itself needs the orchestrator.
func (o *Orchestrator) SetBroadcaster(b contract.Broadcaster) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broadcaster = b
}

// Connect registers a new session and joins it to the public room.
// ErrDuplicateSource is returned once the rejection has been sent, the caller must close the connection.
func (o *Orchestrator) Connect(ctx context.Context, id domain.SessionID, address string) error {
	envelopes, err := o.connect(id, address)
	o.deliver(ctx, envelopes)
	return err
}

func (o *Orchestrator) connect(id domain.SessionID, address string) ([]Envelope, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.presence.Connect(id, address); err != nil {
		if errors.Is(err, errors.ErrDuplicateSource) {
			return []Envelope{toSession(id, event.ConnectionRejected{
				Reason:  event.ReasonAddressAlreadyConnected,
				Message: "Only one connection per IP address is allowed",
			})}, err
		}
		return nil, err
	}
	o.registry.Join(id, domain.PublicRoom)
	o.log.Info("Session connected", "session", id, "address", address)
	return []Envelope{o.usersUpdate()}, nil
}

// Disconnect removes the session from every room and from the registry.
// Calling it twice, or for a session that was rejected, is a no-op.
func (o *Orchestrator) Disconnect(ctx context.Context, id domain.SessionID) {
	o.deliver(ctx, o.disconnect(id))
}

func (o *Orchestrator) disconnect(id domain.SessionID) []Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()

	session, ok := o.presence.Disconnect(id)
	rooms := o.registry.PurgeSession(id)
	if !ok {
		return nil
	}
	o.log.Info("Session disconnected", "session", id, "rooms", len(rooms),
		"at", session.LastDisconnectTime)
	return []Envelope{o.usersUpdate()}
}

// Handle routes one inbound event and delivers what it produced.
func (o *Orchestrator) Handle(ctx context.Context, id domain.SessionID, name event.Name, payload json.RawMessage) error {
	envelopes, err := o.Route(id, name, payload)
	o.deliver(ctx, envelopes)
	return err
}

// Route applies one inbound event to the state and returns the envelopes to deliver.
// Invalid payloads are answered with an error event to the sender and never touch the state.
func (o *Orchestrator) Route(id domain.SessionID, name event.Name, payload json.RawMessage) ([]Envelope, error) {
	if len(payload) > o.maxPayloadBytes {
		o.log.Warn("Payload too large", "session", id, "event", name, "size", len(payload))
		return []Envelope{errorTo(id, "Payload too large")}, errors.ErrPayloadTooLarge
	}
	r, ok := o.routes[name]
	if !ok {
		o.log.Debug("Unknown event", "session", id, "event", name)
		return []Envelope{errorTo(id, fmt.Sprintf("Unknown event %s", name))}, errors.ErrUnknownEvent
	}
	cmd, err := r.decode(payload)
	if err == nil {
		err = o.validate.Struct(cmd)
	}
	if err != nil {
		o.log.Debug("Invalid payload", "session", id, "event", name, "error", err)
		return []Envelope{errorTo(id, invalidInputMessage(name))}, fmt.Errorf("%s: %w", name, errors.ErrInvalidInput)
	}

	o.mu.Lock()
	envelopes, err := r.handle(id, cmd)
	o.mu.Unlock()
	if err != nil {
		o.log.Error("Event handling failed", "session", id, "event", name, "error", err)
		return []Envelope{errorTo(id, "Internal error")}, err
	}
	return envelopes, nil
}

func (o *Orchestrator) deliver(ctx context.Context, envelopes []Envelope) {
	o.mu.Lock()
	broadcaster := o.broadcaster
	o.mu.Unlock()
	if broadcaster == nil {
		return
	}
	for _, env := range envelopes {
		var err error
		if env.IsRoom() {
			err = broadcaster.SendToRoom(ctx, env.Room, env.Recipients, env.Event)
		} else {
			err = broadcaster.SendToSession(ctx, env.To, env.Event)
		}
		if err != nil {
			o.log.Warn("Delivery failed", "event", env.Event.EventName(), "room", env.Room, "session", env.To, "error", err)
		}
	}
}

func invalidInputMessage(name event.Name) string {
	if name == event.JoinPrivateChat {
		return "Invalid target user specified"
	}
	return fmt.Sprintf("Invalid payload for %s", name)
}

func toSession(id domain.SessionID, e event.Outbound) Envelope {
	return Envelope{To: id, Event: e}
}

func errorTo(id domain.SessionID, message string) Envelope {
	return toSession(id, event.Error{Message: message})
}

// toRoom snapshots the room members, it must be called with the state lock held.
func (o *Orchestrator) toRoom(room domain.RoomName, e event.Outbound) Envelope {
	return Envelope{Room: room, Recipients: o.registry.Members(room), Event: e}
}
