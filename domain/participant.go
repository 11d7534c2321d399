// Package domain contains core concepts of the chat relay.
// This file defines Session entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type SessionID string

const aliasLength = 8

// Alias is the display name used when no nickname has been chosen.
func (id SessionID) Alias() string {
	s := string(id)
	if len(s) > aliasLength {
		return s[:aliasLength]
	}
	return s
}

// Session is one live connection and its identity state.
type Session struct {
	ID                 SessionID
	Alias              string
	Nickname           string
	ConnectTime        time.Time
	LastDisconnectTime *time.Time
	Address            string
}

// DisplayName prefers the nickname over the alias.
func (s Session) DisplayName() string {
	if s.Nickname != "" {
		return s.Nickname
	}
	return s.Alias
}

// Presence is the public view of a connected session.
type Presence struct {
	ID       SessionID
	Alias    string
	Nickname string
}
