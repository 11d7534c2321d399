package domain

// PrivateChat is the metadata kept for a private room once it carried a message.
// It outlives the room membership.
type PrivateChat struct {
	Room          RoomName
	Participants  []SessionID
	CreatedAt     string
	LastMessageAt string
}

// StoreStats is the rollup exposed by the message store.
type StoreStats struct {
	TotalMessages int
	TotalRooms    int
	RoomCounts    map[RoomName]int
	PrivateChats  []PrivateChat
}

// PrivateChatInfo describes a private chat in the diagnostics rollup.
type PrivateChatInfo struct {
	Participants int
	MessageCount int
	LastMessage  string
	CreatedAt    string
}

// ChatStats is the diagnostics rollup over sessions, rooms and messages.
type ChatStats struct {
	TotalMessages      int
	TotalRooms         int
	ActivePrivateChats int
	ConnectedUsers     int
	RoomMessageCounts  map[RoomName]int
	PrivateChatInfo    map[RoomName]PrivateChatInfo
}
