package runtime

import (
	"chat-relay/domain"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type Set[T comparable] map[T]struct{}

// Registry is the bidirectional membership index between sessions and rooms.
// A session is in roomMembers[r] iff r is in sessionRooms[session].
type Registry struct {
	mu           sync.RWMutex
	roomMembers  map[domain.RoomName]Set[domain.SessionID]
	sessionRooms map[domain.SessionID]Set[domain.RoomName]
}

func NewRegistry() *Registry {
	return &Registry{
		roomMembers: map[domain.RoomName]Set[domain.SessionID]{
			domain.PublicRoom: make(Set[domain.SessionID]),
		},
		sessionRooms: make(map[domain.SessionID]Set[domain.RoomName]),
	}
}

// Join adds the session to the room, creating the room on the fly.
// It returns false when the session was already a member.
func (r *Registry) Join(sessionID domain.SessionID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.roomMembers[room]
	if !ok {
		members = make(Set[domain.SessionID])
		r.roomMembers[room] = members
	}
	if _, already := members[sessionID]; already {
		return false
	}
	members[sessionID] = struct{}{}

	rooms, ok := r.sessionRooms[sessionID]
	if !ok {
		rooms = make(Set[domain.RoomName])
		r.sessionRooms[sessionID] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes the session from the room.
// An emptied room is dropped unless it is the public room.
func (r *Registry) Leave(sessionID domain.SessionID, room domain.RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(sessionID, room)
}

func (r *Registry) leave(sessionID domain.SessionID, room domain.RoomName) {
	if members, ok := r.roomMembers[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 && !room.IsPublic() {
			delete(r.roomMembers, room)
		}
	}
	if rooms, ok := r.sessionRooms[sessionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.sessionRooms, sessionID)
		}
	}
}

// PurgeSession removes the session from every room and returns those rooms.
func (r *Registry) PurgeSession(sessionID domain.SessionID) []domain.RoomName {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := sortedKeys(r.sessionRooms[sessionID])
	for _, room := range rooms {
		r.leave(sessionID, room)
	}
	delete(r.sessionRooms, sessionID)
	return rooms
}

// Members returns a sorted copy of the room members.
func (r *Registry) Members(room domain.RoomName) []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.roomMembers[room])
}

// RoomsOf returns a sorted copy of the rooms a session belongs to.
func (r *Registry) RoomsOf(sessionID domain.SessionID) []domain.RoomName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sessionRooms[sessionID])
}

func (r *Registry) IsMember(sessionID domain.SessionID, room domain.RoomName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[room][sessionID]
	return ok
}

func (r *Registry) RoomExists(room domain.RoomName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[room]
	return ok
}

func (r *Registry) ParticipantCount(room domain.RoomName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers[room])
}

func sortedKeys[T ~string](set Set[T]) []T {
	keys := lo.Keys(set)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
