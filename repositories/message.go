//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type IMessageRepository interface {
	Append(message domain.Message) (domain.Message, error)
	Get(id domain.MessageID) (domain.Message, bool, error)
	Edit(id domain.MessageID, data string, requester domain.SessionID) (domain.Message, bool, error)
	Delete(id domain.MessageID, requester domain.SessionID) (domain.Message, bool, error)
	History(room domain.RoomName, since *string, limit int) ([]domain.Message, error)
	Count(room domain.RoomName) (int, error)
	Stats() (domain.StoreStats, error)
}

const (
	messagePrefix = "message:"
	payloadPrefix = "payload:"
	historyPrefix = "history:"
	roomPrefix    = "room:"
	privatePrefix = "private:"

	// chunkSize stays under the in-memory value limit of badger (1 MiB).
	chunkSize = 512 * 1024
)

// MessageRepository keeps messages in badger under three kinds of keys:
// the message metadata keyed by id, its payload split in chunks, and an entry
// in the ordered log of its room pointing back to the id.
// Payload chunks are written first, the metadata and log entry are committed together afterwards,
// so readers never see a message whose payload is incomplete.
type MessageRepository struct {
	mu  sync.Mutex // serializes read-modify-write sequences
	db  *badger.DB
	log *slog.Logger
	seq uint64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

type storedMessage struct {
	domain.Message
	Seq    uint64
	Rev    uint64
	Chunks int
}

// Append stores a message under a fresh id.
// The room log key is "history:{room_hex}:{seq_padded}:{id}", the 19-digit padding keeps
// lexicographical order equal to insertion order.
func (m *MessageRepository) Append(message domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	message.ID = domain.MessageID(uuid.NewString())
	stored := storedMessage{Message: message, Seq: m.seq}
	chunks, err := m.writePayload(message.ID, stored.Rev, message.Data)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message to %s: %w", message.Room, err)
	}
	stored.Chunks = chunks
	bytes, err := encodeMessage(stored)
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		if err := txn.Set(historyKey(message.Room, stored.Seq, message.ID), []byte(message.ID)); err != nil {
			return err
		}
		if err := txn.Set(roomKey(message.Room), []byte(message.Room)); err != nil {
			return err
		}
		if message.Room.IsPrivate() {
			return m.touchPrivateChat(txn, message)
		}
		return nil
	})
	if err != nil {
		m.dropPayload(message.ID, stored.Rev, chunks)
		return domain.Message{}, fmt.Errorf("append message to %s: %w", message.Room, err)
	}
	m.log.Debug("Message stored", "id", message.ID, "room", message.Room, "size", len(message.Data), "chunks", chunks)
	return message, nil
}

// writePayload splits data in byte chunks and writes them through a write batch,
// which commits as many transactions as the payload needs.
func (m *MessageRepository) writePayload(id domain.MessageID, rev uint64, data string) (int, error) {
	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	n := 0
	for offset := 0; offset < len(data); offset += chunkSize {
		end := min(offset+chunkSize, len(data))
		if err := wb.Set(payloadKey(id, rev, n), []byte(data[offset:end])); err != nil {
			return 0, fmt.Errorf("write payload chunk %d: %w", n, err)
		}
		n++
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("write payload: %w", err)
	}
	return n, nil
}

func (m *MessageRepository) dropPayload(id domain.MessageID, rev uint64, chunks int) {
	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for n := 0; n < chunks; n++ {
		if err := wb.Delete(payloadKey(id, rev, n)); err != nil {
			m.log.Warn("Payload cleanup failed", "id", id, "error", err)
			return
		}
	}
	if err := wb.Flush(); err != nil {
		m.log.Warn("Payload cleanup failed", "id", id, "error", err)
	}
}

func readPayload(txn *badger.Txn, stored storedMessage) (string, error) {
	var sb strings.Builder
	for n := 0; n < stored.Chunks; n++ {
		item, err := txn.Get(payloadKey(stored.ID, stored.Rev, n))
		if err != nil {
			return "", fmt.Errorf("read payload chunk %d of %s: %w", n, stored.ID, err)
		}
		if err = item.Value(func(val []byte) error {
			sb.Write(val)
			return nil
		}); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// touchPrivateChat creates the private chat metadata on first message, else bumps its last message time.
func (m *MessageRepository) touchPrivateChat(txn *badger.Txn, message domain.Message) error {
	key := privateKey(message.Room)
	item, err := txn.Get(key)
	switch {
	case err == badger.ErrKeyNotFound:
		participants := message.Room.Participants()
		if participants == nil {
			return nil
		}
		return setPrivateChat(txn, domain.PrivateChat{
			Room:          message.Room,
			Participants:  participants,
			CreatedAt:     message.Timestamp,
			LastMessageAt: message.Timestamp,
		})
	case err != nil:
		return err
	}
	var chat domain.PrivateChat
	if err = item.Value(func(val []byte) error {
		chat, err = decodePrivateChat(val)
		return err
	}); err != nil {
		return err
	}
	chat.LastMessageAt = message.Timestamp
	return setPrivateChat(txn, chat)
}

func (m *MessageRepository) Get(id domain.MessageID) (domain.Message, bool, error) {
	stored, ok, err := m.get(id)
	return stored.Message, ok, err
}

func (m *MessageRepository) get(id domain.MessageID) (storedMessage, bool, error) {
	var stored storedMessage
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		stored, found, err = getMetadata(txn, id)
		if err != nil || !found {
			return err
		}
		stored.Data, err = readPayload(txn, stored)
		return err
	})
	return stored, found, err
}

// getMetadata reads a message without its payload.
func getMetadata(txn *badger.Txn, id domain.MessageID) (storedMessage, bool, error) {
	var stored storedMessage
	item, err := txn.Get(messageKey(id))
	if err == badger.ErrKeyNotFound {
		return stored, false, nil
	}
	if err != nil {
		return stored, false, err
	}
	err = item.Value(func(val []byte) error {
		stored, err = decodeMessage(val)
		return err
	})
	return stored, err == nil, err
}

// Edit replaces the payload of a message written by requester.
// The new payload is written under a new revision before the metadata points to it.
// Unknown ids and foreign messages are reported as not applied.
func (m *MessageRepository) Edit(id domain.MessageID, data string, requester domain.SessionID) (domain.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok, err := m.metadata(id)
	if err != nil || !ok || stored.Author != requester {
		return domain.Message{}, false, err
	}
	previous := stored
	stored.Rev++
	stored.Chunks, err = m.writePayload(id, stored.Rev, data)
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("edit message %s: %w", id, err)
	}
	bytes, err := encodeMessage(stored)
	if err != nil {
		return domain.Message{}, false, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(id), bytes)
	})
	if err != nil {
		m.dropPayload(id, stored.Rev, stored.Chunks)
		return domain.Message{}, false, fmt.Errorf("edit message %s: %w", id, err)
	}
	m.dropPayload(id, previous.Rev, previous.Chunks)
	stored.Data = data
	return stored.Message, true, nil
}

func (m *MessageRepository) metadata(id domain.MessageID) (storedMessage, bool, error) {
	var stored storedMessage
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		stored, found, err = getMetadata(txn, id)
		return err
	})
	return stored, found, err
}

// Delete removes a message written by requester from the global table and its room log.
// The room itself stays known to the store.
func (m *MessageRepository) Delete(id domain.MessageID, requester domain.SessionID) (domain.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok, err := m.get(id)
	if err != nil || !ok || stored.Author != requester {
		return domain.Message{}, false, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(messageKey(id)); err != nil {
			return err
		}
		return txn.Delete(historyKey(stored.Room, stored.Seq, id))
	})
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("delete message %s: %w", id, err)
	}
	m.dropPayload(id, stored.Rev, stored.Chunks)
	return stored.Message, true, nil
}

// History returns the room log in insertion order.
// Entries are kept when their timestamp is strictly greater than since (string comparison),
// then only the last limit entries are returned. A limit <= 0 keeps everything.
// Payloads are only read for the entries returned.
func (m *MessageRepository) History(room domain.RoomName, since *string, limit int) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		var kept []storedMessage
		if err := iteratePrefix(txn, historyRoomPrefix(room), func(val []byte) error {
			stored, ok, err := getMetadata(txn, domain.MessageID(val))
			if err != nil || !ok {
				return err
			}
			if since != nil && *since != "" && stored.Timestamp <= *since {
				return nil
			}
			kept = append(kept, stored)
			return nil
		}); err != nil {
			return err
		}
		if limit > 0 && len(kept) > limit {
			kept = kept[len(kept)-limit:]
		}
		for _, stored := range kept {
			data, err := readPayload(txn, stored)
			if err != nil {
				return err
			}
			stored.Data = data
			messages = append(messages, stored.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Count returns the number of entries in the room log.
func (m *MessageRepository) Count(room domain.RoomName) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, historyRoomPrefix(room))
		return nil
	})
	return count, err
}

func (m *MessageRepository) Stats() (domain.StoreStats, error) {
	stats := domain.StoreStats{RoomCounts: make(map[domain.RoomName]int)}
	err := m.db.View(func(txn *badger.Txn) error {
		stats.TotalMessages = countPrefix(txn, []byte(messagePrefix))

		var rooms []domain.RoomName
		if err := iteratePrefix(txn, []byte(roomPrefix), func(val []byte) error {
			rooms = append(rooms, domain.RoomName(val))
			return nil
		}); err != nil {
			return err
		}
		stats.TotalRooms = len(rooms)
		for _, room := range rooms {
			stats.RoomCounts[room] = countPrefix(txn, historyRoomPrefix(room))
		}

		return iteratePrefix(txn, []byte(privatePrefix), func(val []byte) error {
			chat, err := decodePrivateChat(val)
			if err != nil {
				return err
			}
			stats.PrivateChats = append(stats.PrivateChats, chat)
			return nil
		})
	})
	return stats, err
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()
	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}

func iteratePrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// Room names come from clients, they are hex encoded so that ':' can't break prefix scans.
func encodeRoom(room domain.RoomName) string {
	return hex.EncodeToString([]byte(room))
}

func messageKey(id domain.MessageID) []byte {
	return []byte(messagePrefix + string(id))
}

func historyRoomPrefix(room domain.RoomName) []byte {
	return []byte(historyPrefix + encodeRoom(room) + ":")
}

func historyKey(room domain.RoomName, seq uint64, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", historyPrefix, encodeRoom(room), seq, id))
}

func payloadKey(id domain.MessageID, rev uint64, n int) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%06d", payloadPrefix, id, rev, n))
}

func roomKey(room domain.RoomName) []byte {
	return []byte(roomPrefix + encodeRoom(room))
}

func privateKey(room domain.RoomName) []byte {
	return []byte(privatePrefix + encodeRoom(room))
}

func encodeMessage(m storedMessage) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":        string(m.ID),
		"sid":       string(m.Author),
		"type":      string(m.Type),
		"mime":      m.Mime,
		"timestamp": m.Timestamp,
		"room":      string(m.Room),
		"seq":       m.Seq,
		"rev":       m.Rev,
		"chunks":    m.Chunks,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeMessage(b []byte) (storedMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return storedMessage{}, err
	}
	f := s.GetFields()
	return storedMessage{
		Message: domain.Message{
			ID:        domain.MessageID(f["id"].GetStringValue()),
			Author:    domain.SessionID(f["sid"].GetStringValue()),
			Type:      domain.MessageType(f["type"].GetStringValue()),
			Mime:      f["mime"].GetStringValue(),
			Timestamp: f["timestamp"].GetStringValue(),
			Room:      domain.RoomName(f["room"].GetStringValue()),
		},
		Seq:    uint64(f["seq"].GetNumberValue()),
		Rev:    uint64(f["rev"].GetNumberValue()),
		Chunks: int(f["chunks"].GetNumberValue()),
	}, nil
}

func setPrivateChat(txn *badger.Txn, chat domain.PrivateChat) error {
	s, err := structpb.NewStruct(map[string]any{
		"room": string(chat.Room),
		"participants": lo.Map(chat.Participants, func(id domain.SessionID, _ int) any {
			return string(id)
		}),
		"created_at":      chat.CreatedAt,
		"last_message_at": chat.LastMessageAt,
	})
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(s)
	if err != nil {
		return err
	}
	return txn.Set(privateKey(chat.Room), bytes)
}

func decodePrivateChat(b []byte) (domain.PrivateChat, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return domain.PrivateChat{}, err
	}
	f := s.GetFields()
	return domain.PrivateChat{
		Room: domain.RoomName(f["room"].GetStringValue()),
		Participants: lo.Map(f["participants"].GetListValue().GetValues(), func(v *structpb.Value, _ int) domain.SessionID {
			return domain.SessionID(v.GetStringValue())
		}),
		CreatedAt:     f["created_at"].GetStringValue(),
		LastMessageAt: f["last_message_at"].GetStringValue(),
	}, nil
}
