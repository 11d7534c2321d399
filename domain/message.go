// Package domain contains core concepts of the chat relay.
// This file defines Message records and related rules.
// Author and timestamp never change once a message is stored.
package domain

import "time"

type MessageID string

type MessageType string

const (
	TextMessage  MessageType = "text"
	ImageMessage MessageType = "image"
)

// TimestampLayout is used for server assigned timestamps.
// Client supplied timestamps are stored as received.
const TimestampLayout = time.RFC3339Nano

// Message is a stored chat message.
type Message struct {
	ID        MessageID
	Author    SessionID
	Data      string
	Type      MessageType
	Mime      string
	Timestamp string
	Room      RoomName
}

func (m Message) IsText() bool {
	return m.Type == "" || m.Type == TextMessage
}

// FormatTimestamp renders t the way server assigned timestamps are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
