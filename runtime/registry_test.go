package runtime

import (
	"chat-relay/domain"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Join_Public_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := domain.SessionID(uuid.NewString())

	// Given the public room exists even without members
	req.True(registry.RoomExists(domain.PublicRoom))
	req.Empty(registry.Members(domain.PublicRoom))

	// When a session joins the public room
	req.True(registry.Join(sessionID, domain.PublicRoom))

	// Then both sides of the index agree
	req.Equal([]domain.SessionID{sessionID}, registry.Members(domain.PublicRoom))
	req.Equal([]domain.RoomName{domain.PublicRoom}, registry.RoomsOf(sessionID))
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := domain.SessionID(uuid.NewString())

	req.True(registry.Join(sessionID, domain.PublicRoom))
	req.False(registry.Join(sessionID, domain.PublicRoom))

	req.Len(registry.Members(domain.PublicRoom), 1)
	req.Len(registry.RoomsOf(sessionID), 1)
}

func TestRegistry_Leave_Private_Room_Last_Member(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a := domain.SessionID(uuid.NewString())
	room := domain.PrivateRoomName(a, a)

	// Given a session alone in a private room
	registry.Join(a, room)
	req.True(registry.RoomExists(room))

	// When it leaves
	registry.Leave(a, room)

	// Then the room doesn't exist anymore
	req.False(registry.RoomExists(room))
	req.Empty(registry.Members(room))
	req.Empty(registry.RoomsOf(a))
}

func TestRegistry_Leave_Public_Room_Is_Kept(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a := domain.SessionID(uuid.NewString())

	registry.Join(a, domain.PublicRoom)
	registry.Leave(a, domain.PublicRoom)

	req.True(registry.RoomExists(domain.PublicRoom))
	req.False(registry.IsMember(a, domain.PublicRoom))
}

func TestRegistry_Leave_Keeps_Other_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a, b := domain.SessionID("a"), domain.SessionID("b")
	room := domain.PrivateRoomName(a, b)

	registry.Join(a, room)
	registry.Join(b, room)
	registry.Leave(a, room)

	req.True(registry.RoomExists(room))
	req.Equal([]domain.SessionID{b}, registry.Members(room))
	req.Equal(1, registry.ParticipantCount(room))

	// Leaving twice is harmless
	registry.Leave(a, room)
	req.Equal([]domain.SessionID{b}, registry.Members(room))
}

func TestRegistry_PurgeSession(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a, b := domain.SessionID("a"), domain.SessionID("b")
	pair := domain.PrivateRoomName(a, b)
	self := domain.PrivateRoomName(a, a)

	// Given a session in the public room and two private rooms
	registry.Join(a, domain.PublicRoom)
	registry.Join(b, domain.PublicRoom)
	registry.Join(a, pair)
	registry.Join(b, pair)
	registry.Join(a, self)

	// When it is purged
	rooms := registry.PurgeSession(a)

	// Then every room it belonged to is reported
	req.ElementsMatch([]domain.RoomName{domain.PublicRoom, pair, self}, rooms)

	// And it appears in none of them
	req.Empty(registry.RoomsOf(a))
	req.Equal([]domain.SessionID{b}, registry.Members(domain.PublicRoom))
	req.Equal([]domain.SessionID{b}, registry.Members(pair))
	req.False(registry.RoomExists(self))

	// And purging an unknown session is a no-op
	req.Empty(registry.PurgeSession("unknown"))
}

func TestRegistry_Concurrent_Join_Leave_Stay_Consistent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	var wg sync.WaitGroup
	ids := make([]domain.SessionID, 50)
	for i := range ids {
		ids[i] = domain.SessionID(uuid.NewString())
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id domain.SessionID) {
			defer wg.Done()
			room := domain.PrivateRoomName(id, ids[0])
			registry.Join(id, domain.PublicRoom)
			registry.Join(id, room)
			registry.Leave(id, room)
			registry.PurgeSession(id)
		}(id)
	}
	wg.Wait()

	req.Empty(registry.Members(domain.PublicRoom))
	for _, id := range ids {
		req.Empty(registry.RoomsOf(id))
	}
}
