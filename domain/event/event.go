// Package event lists the named events exchanged with clients.
// Inbound payloads are decoded into the command types of inbound.go,
// everything the relay emits is one of the types of outbound.go.
package event

type Name string

const (
	Connect          Name = "connect"
	Disconnect       Name = "disconnect"
	SendMessage      Name = "message"
	SendMessageAlias Name = "send_message"
	JoinPrivateChat  Name = "join_private_chat"
	SetNickname      Name = "set_nickname"
	JoinCommonRoom   Name = "join_common_room"
	EditMessage      Name = "edit_message"
	DeleteMessage    Name = "delete_message"
	LeavePrivateChat Name = "leave_private_chat"
	GetChatHistory   Name = "get_chat_history"
	GetUserInfo      Name = "get_user_info"
	GetChatStats     Name = "get_chat_stats"
)

const (
	UsersUpdateName           Name = "users_update"
	MessageName               Name = "message"
	PrivateChatInvitationName Name = "private_chat_invitation"
	ChatHistoryResponseName   Name = "chat_history_response"
	PrivateChatJoinedName     Name = "private_chat_joined"
	NicknameUpdatedName       Name = "nickname_updated"
	MessageEditedName         Name = "message_edited"
	MessageDeletedName        Name = "message_deleted"
	UserInfoResponseName      Name = "user_info_response"
	ChatStatsResponseName     Name = "chat_stats_response"
	ErrorName                 Name = "error"
	ConnectionRejectedName    Name = "connection_rejected"
)
