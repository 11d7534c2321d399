package event

import (
	"encoding/json"
	"fmt"
)

// Command is a decoded inbound payload.
type Command interface {
	EventName() Name
}

type SendMessageCommand struct {
	Data      string    `json:"data"`
	Type      string    `json:"type" validate:"omitempty,max=32"`
	Timestamp Timestamp `json:"timestamp"`
	Room      string    `json:"room"`
}

func (SendMessageCommand) EventName() Name { return SendMessage }

type JoinPrivateChatCommand struct {
	TargetSID string `json:"target_sid" validate:"required"`
}

func (JoinPrivateChatCommand) EventName() Name { return JoinPrivateChat }

type SetNicknameCommand struct {
	Nickname string `json:"nickname"`
}

func (SetNicknameCommand) EventName() Name { return SetNickname }

type JoinCommonRoomCommand struct{}

func (JoinCommonRoomCommand) EventName() Name { return JoinCommonRoom }

type EditMessageCommand struct {
	ID   string `json:"id" validate:"required"`
	Data string `json:"data"`
}

func (EditMessageCommand) EventName() Name { return EditMessage }

type DeleteMessageCommand struct {
	ID string `json:"id" validate:"required"`
}

func (DeleteMessageCommand) EventName() Name { return DeleteMessage }

type LeavePrivateChatCommand struct {
	RoomName string `json:"room_name"`
}

func (LeavePrivateChatCommand) EventName() Name { return LeavePrivateChat }

type GetChatHistoryCommand struct {
	RoomName       string  `json:"room_name"`
	Limit          Limit   `json:"limit,omitzero"`
	SinceTimestamp *string `json:"since_timestamp"`
}

func (GetChatHistoryCommand) EventName() Name { return GetChatHistory }

type GetUserInfoCommand struct{}

func (GetUserInfoCommand) EventName() Name { return GetUserInfo }

type GetChatStatsCommand struct{}

func (GetChatStatsCommand) EventName() Name { return GetChatStats }

// Timestamp is a client supplied timestamp, stored as received.
// Numbers keep their literal text.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Timestamp(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timestamp must be a string or a number: %w", err)
	}
	*t = Timestamp(n.String())
	return nil
}

// Limit is the history size asked by a client.
// An absent limit keeps Present false, an explicit null asks for every message.
type Limit struct {
	Present bool
	Value   int
}

func NewLimit(n int) Limit {
	return Limit{Present: true, Value: n}
}

func (l *Limit) UnmarshalJSON(b []byte) error {
	l.Present = true
	if string(b) == "null" {
		l.Value = 0
		return nil
	}
	if err := json.Unmarshal(b, &l.Value); err != nil {
		return err
	}
	if l.Value < 0 {
		return fmt.Errorf("negative limit %d", l.Value)
	}
	return nil
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if !l.Present {
		return []byte("null"), nil
	}
	return json.Marshal(l.Value)
}
