package repositories

import (
	"chat-relay/domain"
	"chat-relay/storage"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) *MessageRepository {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageRepository(db, slog.Default())
}

func textMessage(author domain.SessionID, room domain.RoomName, data, timestamp string) domain.Message {
	return domain.Message{
		Author:    author,
		Data:      data,
		Type:      domain.TextMessage,
		Timestamp: timestamp,
		Room:      room,
	}
}

func Test_Append_Then_History_Limit_One(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)

	// Given a few messages already stored
	for i := 0; i < 3; i++ {
		_, err := repository.Append(textMessage("alice", domain.PublicRoom, fmt.Sprintf("msg-%d", i), "2024-01-01T00:00:0"+fmt.Sprint(i)+"Z"))
		req.NoError(err)
	}

	// When a new message is appended
	stored, err := repository.Append(textMessage("bob", domain.PublicRoom, "hi", "2024-01-01T00:00:09Z"))
	req.NoError(err)
	req.NotEmpty(stored.ID)

	// Then it is the only entry of the history tail of size one
	history, err := repository.History(domain.PublicRoom, nil, 1)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(stored, history[0])
}

func Test_History_Insertion_Order_And_Limit(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)

	// Given timestamps out of order, insertion order is the source of truth
	timestamps := []string{"2024-01-01T00:00:05Z", "2024-01-01T00:00:01Z", "2024-01-01T00:00:03Z"}
	for i, ts := range timestamps {
		_, err := repository.Append(textMessage("alice", domain.PublicRoom, fmt.Sprint(i), ts))
		req.NoError(err)
	}

	all, err := repository.History(domain.PublicRoom, nil, 0)
	req.NoError(err)
	req.Equal([]string{"0", "1", "2"}, lo.Map(all, func(m domain.Message, _ int) string { return m.Data }))

	tail, err := repository.History(domain.PublicRoom, nil, 2)
	req.NoError(err)
	req.Equal([]string{"1", "2"}, lo.Map(tail, func(m domain.Message, _ int) string { return m.Data }))
}

func Test_History_Since_Timestamp(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	for i, ts := range []string{"2024-01-01T00:00:01Z", "2024-01-01T00:00:02Z", "2024-01-01T00:00:03Z"} {
		_, err := repository.Append(textMessage("alice", domain.PublicRoom, fmt.Sprint(i), ts))
		req.NoError(err)
	}

	tests := []struct {
		name     string
		since    *string
		limit    int
		expected []string
	}{
		{name: "No bound", since: nil, limit: 0, expected: []string{"0", "1", "2"}},
		{name: "Empty bound is ignored", since: lo.ToPtr(""), limit: 0, expected: []string{"0", "1", "2"}},
		{name: "Strictly greater", since: lo.ToPtr("2024-01-01T00:00:02Z"), limit: 0, expected: []string{"2"}},
		{name: "Bound then limit", since: lo.ToPtr("2024-01-01T00:00:00Z"), limit: 2, expected: []string{"1", "2"}},
		{name: "Nothing newer", since: lo.ToPtr("2025-01-01T00:00:00Z"), limit: 10, expected: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := repository.History(domain.PublicRoom, tt.since, tt.limit)
			require.NoError(t, err)
			require.Equal(t, tt.expected, lo.Map(history, func(m domain.Message, _ int) string { return m.Data }))
		})
	}
}

func Test_History_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)

	history, err := repository.History("nowhere", nil, 10)
	req.NoError(err)
	req.NotNil(history)
	req.Empty(history)
}

func Test_History_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)

	// Given two rooms where one name prefixes the other
	_, err := repository.Append(textMessage("alice", "a", "in a", "1"))
	req.NoError(err)
	_, err = repository.Append(textMessage("alice", "a:b", "in a:b", "2"))
	req.NoError(err)

	history, err := repository.History("a", nil, 0)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("in a", history[0].Data)
}

func Test_Edit_By_Author(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, "hello", "1"))
	req.NoError(err)

	// When the author edits the message
	edited, applied, err := repository.Edit(stored.ID, "hello world", "alice")
	req.NoError(err)
	req.True(applied)
	req.Equal("hello world", edited.Data)

	// Then both copies show the new payload
	global, ok, err := repository.Get(stored.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal("hello world", global.Data)

	history, err := repository.History(domain.PublicRoom, nil, 0)
	req.NoError(err)
	req.Equal(global, history[0])
	req.Equal(stored.Timestamp, history[0].Timestamp)
}

func Test_Edit_By_Someone_Else(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, "hello", "1"))
	req.NoError(err)

	// When another session tries to edit
	_, applied, err := repository.Edit(stored.ID, "hacked", "mallory")

	// Then nothing changes
	req.NoError(err)
	req.False(applied)
	history, err := repository.History(domain.PublicRoom, nil, 0)
	req.NoError(err)
	req.Equal("hello", history[0].Data)

	// And unknown ids are ignored too
	_, applied, err = repository.Edit("missing", "x", "alice")
	req.NoError(err)
	req.False(applied)
}

func Test_Delete_By_Author(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	kept, err := repository.Append(textMessage("alice", domain.PublicRoom, "keep", "1"))
	req.NoError(err)
	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, "drop", "2"))
	req.NoError(err)

	// A foreign delete is refused
	_, applied, err := repository.Delete(stored.ID, "mallory")
	req.NoError(err)
	req.False(applied)

	// When the author deletes the message
	_, applied, err = repository.Delete(stored.ID, "alice")
	req.NoError(err)
	req.True(applied)

	// Then it is gone from the global table and the room log
	_, ok, err := repository.Get(stored.ID)
	req.NoError(err)
	req.False(ok)
	history, err := repository.History(domain.PublicRoom, nil, 0)
	req.NoError(err)
	req.Equal([]domain.Message{kept}, history)

	// And further edits or deletes are no-ops
	_, applied, err = repository.Edit(stored.ID, "again", "alice")
	req.NoError(err)
	req.False(applied)
	_, applied, err = repository.Delete(stored.ID, "alice")
	req.NoError(err)
	req.False(applied)
}

func Test_Private_Chat_Metadata(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	room := domain.PrivateRoomName("bob", "alice")

	// Given a first message in a private room
	_, err := repository.Append(textMessage("alice", room, "hey", "2024-01-01T00:00:01Z"))
	req.NoError(err)
	// And a second one
	_, err = repository.Append(textMessage("bob", room, "yo", "2024-01-01T00:00:02Z"))
	req.NoError(err)

	stats, err := repository.Stats()
	req.NoError(err)
	req.Len(stats.PrivateChats, 1)
	chat := stats.PrivateChats[0]
	req.Equal(room, chat.Room)
	req.ElementsMatch([]domain.SessionID{"alice", "bob"}, chat.Participants)
	req.Equal("2024-01-01T00:00:01Z", chat.CreatedAt)
	req.Equal("2024-01-01T00:00:02Z", chat.LastMessageAt)
}

func Test_Stats(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	self := domain.PrivateRoomName("alice", "alice")

	_, err := repository.Append(textMessage("alice", domain.PublicRoom, "1", "1"))
	req.NoError(err)
	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, "2", "2"))
	req.NoError(err)
	_, err = repository.Append(textMessage("alice", self, "note", "3"))
	req.NoError(err)
	_, _, err = repository.Delete(stored.ID, "alice")
	req.NoError(err)

	stats, err := repository.Stats()
	req.NoError(err)
	req.Equal(2, stats.TotalMessages)
	req.Equal(2, stats.TotalRooms)
	req.Equal(map[domain.RoomName]int{domain.PublicRoom: 1, self: 1}, stats.RoomCounts)
	req.Len(stats.PrivateChats, 1)
	req.Equal([]domain.SessionID{"alice"}, stats.PrivateChats[0].Participants)

	count, err := repository.Count(domain.PublicRoom)
	req.NoError(err)
	req.Equal(1, count)
}

func Test_Large_Payloads(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "Exactly one chunk", size: chunkSize},
		{name: "Two MiB image", size: 2 * 1024 * 1024},
		{name: "Twenty MiB image", size: 20 * 1024 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			repository := newRepository(t)
			prefix := "data:image/png;base64,"
			data := prefix + strings.Repeat("iVBORw0K", (tt.size-len(prefix))/8+1)

			// When a payload larger than a badger value is appended
			stored, err := repository.Append(domain.Message{
				Author: "alice", Data: data, Type: domain.ImageMessage, Timestamp: "1", Room: domain.PublicRoom,
			})

			// Then it is stored and read back intact
			req.NoError(err)
			global, ok, err := repository.Get(stored.ID)
			req.NoError(err)
			req.True(ok)
			req.Equal(len(data), len(global.Data))
			req.True(global.Data == data)

			history, err := repository.History(domain.PublicRoom, nil, 0)
			req.NoError(err)
			req.Len(history, 1)
			req.True(history[0].Data == data)
		})
	}
}

func Test_Large_Payload_Multibyte_Text(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)

	// Given text whose runes straddle chunk boundaries
	data := strings.Repeat("é漢😀", chunkSize/3)
	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, data, "1"))
	req.NoError(err)

	global, ok, err := repository.Get(stored.ID)
	req.NoError(err)
	req.True(ok)
	req.True(global.Data == data)
}

func Test_Edit_Large_Payload_Then_Small(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)
	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, "small", "1"))
	req.NoError(err)

	// When the payload grows past several chunks
	large := strings.Repeat("x", 3*chunkSize+7)
	_, applied, err := repository.Edit(stored.ID, large, "alice")
	req.NoError(err)
	req.True(applied)
	global, _, err := repository.Get(stored.ID)
	req.NoError(err)
	req.Equal(len(large), len(global.Data))

	// And shrinks back
	_, applied, err = repository.Edit(stored.ID, "tiny", "alice")
	req.NoError(err)
	req.True(applied)

	// Then only the last revision is visible and no chunk is left behind
	history, err := repository.History(domain.PublicRoom, nil, 0)
	req.NoError(err)
	req.Equal("tiny", history[0].Data)
	req.Equal(1, countKeys(t, repository, payloadPrefix))

	// And deleting the message drops its payload
	_, applied, err = repository.Delete(stored.ID, "alice")
	req.NoError(err)
	req.True(applied)
	req.Equal(0, countKeys(t, repository, payloadPrefix))
}

func Test_Empty_Payload(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t)

	stored, err := repository.Append(textMessage("alice", domain.PublicRoom, "", "1"))
	req.NoError(err)

	global, ok, err := repository.Get(stored.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal("", global.Data)
	req.Equal(0, countKeys(t, repository, payloadPrefix))
}

func countKeys(t *testing.T, repository *MessageRepository, prefix string) int {
	t.Helper()
	count := 0
	require.NoError(t, repository.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, []byte(prefix))
		return nil
	}))
	return count
}
