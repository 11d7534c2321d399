package domain

import (
	"strings"

	"github.com/samber/lo"
)

type RoomName string

const (
	PublicRoom        RoomName = "common_room"
	PrivateRoomPrefix          = "private_room_"
)

// PrivateRoomName derives the room shared by two sessions.
// The result doesn't depend on argument order, a session paired with itself gets its own room.
func PrivateRoomName(a, b SessionID) RoomName {
	if a == b {
		return RoomName(PrivateRoomPrefix + string(a) + "_" + string(a))
	}
	low, high := a, b
	if high < low {
		low, high = high, low
	}
	return RoomName(PrivateRoomPrefix + string(low) + "_" + string(high))
}

func (r RoomName) IsPrivate() bool {
	return strings.HasPrefix(string(r), PrivateRoomPrefix)
}

func (r RoomName) IsPublic() bool {
	return r == PublicRoom
}

// Participants returns the unique session ids encoded in a private room name.
// Identifiers containing '_' can't be recovered exactly, the split is best effort.
func (r RoomName) Participants() []SessionID {
	if !r.IsPrivate() {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(string(r), PrivateRoomPrefix), "_")
	if len(parts) < 2 {
		return nil
	}
	return lo.Uniq(lo.Map(parts, func(p string, _ int) SessionID {
		return SessionID(p)
	}))
}
