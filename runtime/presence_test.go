package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestPresence_Connect(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), true)

	// When a session connects
	session, err := presence.Connect("0123456789abcdef", "1.2.3.4")

	// Then it is registered with a derived alias
	req.NoError(err)
	req.Equal("01234567", session.Alias)
	req.Empty(session.Nickname)
	req.Nil(session.LastDisconnectTime)
	req.False(session.ConnectTime.IsZero())
	req.Equal(1, presence.Len())
}

func TestPresence_Connect_Duplicate_Address(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), true)

	// Given a session connected from an address
	_, err := presence.Connect("session-a", "1.2.3.4")
	req.NoError(err)

	// When a second session comes from the same address
	_, err = presence.Connect("session-b", "1.2.3.4")

	// Then it is rejected and the first one stays
	req.ErrorIs(err, errors.ErrDuplicateSource)
	req.Equal(1, presence.Len())
	req.True(presence.Exists("session-a"))
	req.False(presence.Exists("session-b"))
}

func TestPresence_Connect_Duplicate_Address_Without_Enforcement(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), false)

	_, err := presence.Connect("session-a", "1.2.3.4")
	req.NoError(err)
	_, err = presence.Connect("session-b", "1.2.3.4")
	req.NoError(err)
	req.Equal(2, presence.Len())
}

func TestPresence_Reconnect_After_Disconnect(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), true)

	_, err := presence.Connect("session-a", "1.2.3.4")
	req.NoError(err)

	// When the session disconnects
	snapshot, ok := presence.Disconnect("session-a")
	req.True(ok)
	req.NotNil(snapshot.LastDisconnectTime)

	// Then the address is free again
	_, err = presence.Connect("session-b", "1.2.3.4")
	req.NoError(err)
}

func TestPresence_Disconnect_Keeps_Mapping_Of_Another_Session(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), false)

	// Given two sessions from the same address, the latest owns the mapping
	_, _ = presence.Connect("session-a", "1.2.3.4")
	_, _ = presence.Connect("session-b", "1.2.3.4")

	// When the older one disconnects
	presence.Disconnect("session-a")

	// Then the mapping still points at the newer one
	req.Equal(domain.SessionID("session-b"), presence.addressToSession["1.2.3.4"])
}

func TestPresence_Disconnect_Unknown_Session(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), true)

	_, ok := presence.Disconnect("ghost")
	req.False(ok)

	// Disconnecting twice is harmless
	_, _ = presence.Connect("session-a", "1.2.3.4")
	_, ok = presence.Disconnect("session-a")
	req.True(ok)
	_, ok = presence.Disconnect("session-a")
	req.False(ok)
}

func TestPresence_SetNickname(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), true)
	_, _ = presence.Connect("session-a", "1.2.3.4")

	nickname, ok := presence.SetNickname("session-a", "  alice  ")
	req.True(ok)
	req.Equal("alice", nickname)

	session, _ := presence.Get("session-a")
	req.Equal("alice", session.Nickname)
	req.Equal("alice", session.DisplayName())

	_, ok = presence.SetNickname("ghost", "bob")
	req.False(ok)
}

func TestPresence_Snapshot_Connect_Order(t *testing.T) {
	req := require.New(t)
	presence := NewPresence(logs.GetLoggerFromLevel(slog.LevelDebug), false)
	for _, id := range []domain.SessionID{"c-session", "a-session", "b-session"} {
		_, err := presence.Connect(id, string(id))
		req.NoError(err)
	}
	presence.Disconnect("a-session")

	snapshot := presence.Snapshot()
	req.Len(snapshot, 2)
	req.Equal(domain.SessionID("c-session"), snapshot[0].ID)
	req.Equal(domain.SessionID("b-session"), snapshot[1].ID)
	req.Len(presence.Sessions(), 2)
}
