package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Presence tracks live sessions and which source address holds which session.
type Presence struct {
	mu                   sync.RWMutex
	log                  *slog.Logger
	enforceOnePerAddress bool
	sessions             map[domain.SessionID]*domain.Session
	order                []domain.SessionID // connect order
	addressToSession     map[string]domain.SessionID
	now                  func() time.Time
}

func NewPresence(log *slog.Logger, enforceOnePerAddress bool) *Presence {
	return &Presence{
		log:                  log,
		enforceOnePerAddress: enforceOnePerAddress,
		sessions:             make(map[domain.SessionID]*domain.Session),
		addressToSession:     make(map[string]domain.SessionID),
		now:                  time.Now,
	}
}

// Connect registers a session for the given source address.
// With enforcement on, a second live session from the same address is refused with ErrDuplicateSource.
func (p *Presence) Connect(id domain.SessionID, address string) (domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[id]; ok {
		return domain.Session{}, fmt.Errorf("session %s already connected: %w", id, errors.ErrInvalidInput)
	}

	if p.enforceOnePerAddress {
		if existing, ok := p.addressToSession[address]; ok {
			if _, live := p.sessions[existing]; live {
				p.log.Warn("Connection rejected, address already connected",
					"address", address, "session", id, "existing", existing)
				return domain.Session{}, errors.ErrDuplicateSource
			}
			delete(p.addressToSession, address)
		}
	}

	session := &domain.Session{
		ID:          id,
		Alias:       id.Alias(),
		ConnectTime: p.now().UTC(),
		Address:     address,
	}
	p.sessions[id] = session
	p.order = append(p.order, id)
	p.addressToSession[address] = id
	return *session, nil
}

// Disconnect stamps the disconnect time and removes the session.
// The returned snapshot is the last known state of the session.
func (p *Presence) Disconnect(id domain.SessionID) (domain.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, ok := p.sessions[id]
	if !ok {
		p.log.Debug("Disconnect of unknown session", "session", id)
		return domain.Session{}, false
	}
	at := p.now().UTC()
	session.LastDisconnectTime = &at

	if bound, ok := p.addressToSession[session.Address]; ok && bound == id {
		delete(p.addressToSession, session.Address)
	}
	delete(p.sessions, id)
	p.order = lo.Without(p.order, id)
	return *session, true
}

// SetNickname stores the trimmed nickname, it is a no-op for unknown sessions.
func (p *Presence) SetNickname(id domain.SessionID, nickname string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, ok := p.sessions[id]
	if !ok {
		p.log.Debug("Nickname change for unknown session", "session", id)
		return "", false
	}
	session.Nickname = strings.TrimSpace(nickname)
	return session.Nickname, true
}

func (p *Presence) Get(id domain.SessionID) (domain.Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	session, ok := p.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return *session, true
}

func (p *Presence) Exists(id domain.SessionID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sessions[id]
	return ok
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Snapshot lists connected sessions in connect order.
func (p *Presence) Snapshot() []domain.Presence {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Map(p.order, func(id domain.SessionID, _ int) domain.Presence {
		s := p.sessions[id]
		return domain.Presence{ID: s.ID, Alias: s.Alias, Nickname: s.Nickname}
	})
}

// Sessions returns full session records in connect order.
func (p *Presence) Sessions() []domain.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Map(p.order, func(id domain.SessionID, _ int) domain.Session {
		return *p.sessions[id]
	})
}
