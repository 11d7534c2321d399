package event

import "chat-relay/domain"

// Outbound is anything the relay sends to clients.
type Outbound interface {
	EventName() Name
}

type User struct {
	SID      string `json:"sid"`
	Alias    string `json:"alias"`
	Nickname string `json:"nickname"`
}

type UsersUpdate struct {
	Users []User `json:"users"`
}

func (UsersUpdate) EventName() Name { return UsersUpdateName }

// ChatMessage is a message as rendered to clients, live or inside a history response.
type ChatMessage struct {
	ID        string `json:"id"`
	SID       string `json:"sid"`
	Nickname  string `json:"nickname"`
	Alias     string `json:"alias"`
	Data      string `json:"data"`
	Type      string `json:"type"`
	Mime      string `json:"mime,omitempty"`
	Timestamp string `json:"timestamp"`
	Room      string `json:"room"`
}

func (ChatMessage) EventName() Name { return MessageName }

type PrivateChatInvitation struct {
	RoomName      string `json:"room_name"`
	InitiatorSID  string `json:"initiator_sid"`
	InitiatorName string `json:"initiator_name"`
	TargetSID     string `json:"target_sid"`
	TargetName    string `json:"target_name"`
}

func (PrivateChatInvitation) EventName() Name { return PrivateChatInvitationName }

type ChatHistoryResponse struct {
	RoomName   string        `json:"room_name"`
	Messages   []ChatMessage `json:"messages"`
	TotalCount int           `json:"total_count"`
}

func (ChatHistoryResponse) EventName() Name { return ChatHistoryResponseName }

type PrivateChatJoined struct {
	RoomName   string `json:"room_name"`
	TargetSID  string `json:"target_sid"`
	TargetName string `json:"target_name"`
}

func (PrivateChatJoined) EventName() Name { return PrivateChatJoinedName }

type NicknameUpdated struct {
	SID      string `json:"sid"`
	Nickname string `json:"nickname"`
}

func (NicknameUpdated) EventName() Name { return NicknameUpdatedName }

type MessageEdited struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (MessageEdited) EventName() Name { return MessageEditedName }

type MessageDeleted struct {
	ID string `json:"id"`
}

func (MessageDeleted) EventName() Name { return MessageDeletedName }

type UserInfo struct {
	SID         string   `json:"sid"`
	Alias       string   `json:"alias"`
	Nickname    string   `json:"nickname"`
	ConnectTime string   `json:"connect_time"`
	IPAddress   string   `json:"ip_address"`
	ActiveRooms []string `json:"active_rooms"`
}

type UserInfoResponse struct {
	Users []UserInfo `json:"users"`
}

func (UserInfoResponse) EventName() Name { return UserInfoResponseName }

type PrivateChatSummary struct {
	Participants int    `json:"participants"`
	MessageCount int    `json:"message_count"`
	LastMessage  string `json:"last_message"`
	CreatedAt    string `json:"created_at"`
}

type ChatStatsResponse struct {
	TotalMessages      int                           `json:"total_messages"`
	TotalRooms         int                           `json:"total_rooms"`
	ActivePrivateChats int                           `json:"active_private_chats"`
	ConnectedUsers     int                           `json:"connected_users"`
	RoomMessageCounts  map[string]int                `json:"room_message_counts"`
	PrivateChatInfo    map[string]PrivateChatSummary `json:"private_chat_info"`
}

func (ChatStatsResponse) EventName() Name { return ChatStatsResponseName }

func NewChatStatsResponse(stats domain.ChatStats) ChatStatsResponse {
	response := ChatStatsResponse{
		TotalMessages:      stats.TotalMessages,
		TotalRooms:         stats.TotalRooms,
		ActivePrivateChats: stats.ActivePrivateChats,
		ConnectedUsers:     stats.ConnectedUsers,
		RoomMessageCounts:  make(map[string]int, len(stats.RoomMessageCounts)),
		PrivateChatInfo:    make(map[string]PrivateChatSummary, len(stats.PrivateChatInfo)),
	}
	for room, count := range stats.RoomMessageCounts {
		response.RoomMessageCounts[string(room)] = count
	}
	for room, info := range stats.PrivateChatInfo {
		response.PrivateChatInfo[string(room)] = PrivateChatSummary(info)
	}
	return response
}

type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() Name { return ErrorName }

const ReasonAddressAlreadyConnected = "IP_ALREADY_CONNECTED"

type ConnectionRejected struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (ConnectionRejected) EventName() Name { return ConnectionRejectedName }
