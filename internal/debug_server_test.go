package internal

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"chat-relay/storage"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func get(t *testing.T, server *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestDebugServer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStats := mocks.NewMockStatsProvider(ctrl)

	db, err := storage.OpenInMemory()
	req.NoError(err)
	defer db.Close()
	repository := repositories.NewMessageRepository(db, slog.Default())
	_, err = repository.Append(domain.Message{Author: "alice", Data: "hi", Room: domain.PublicRoom, Timestamp: "1"})
	req.NoError(err)

	mockStats.EXPECT().Stats().Return(domain.ChatStats{
		TotalMessages:     1,
		TotalRooms:        1,
		ConnectedUsers:    3,
		RoomMessageCounts: map[domain.RoomName]int{domain.PublicRoom: 1},
	}, nil).Times(1)

	server := httptest.NewServer(NewDebugServer(slog.Default(), db, mockStats, func() int { return 3 }).Handler())
	defer server.Close()

	status, body := get(t, server, "/healthz")
	req.Equal(http.StatusOK, status)
	req.Equal("OK", body)

	status, body = get(t, server, "/stats")
	req.Equal(http.StatusOK, status)
	req.Contains(body, "Goroutines")
	req.Contains(body, "common_room")
	req.Contains(body, "Connected users")

	status, body = get(t, server, "/inspect?prefix=message:")
	req.Equal(http.StatusOK, status)
	req.Contains(body, "message:")
}

func TestDebugServer_Stats_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStats := mocks.NewMockStatsProvider(ctrl)
	db, err := storage.OpenInMemory()
	req.NoError(err)
	defer db.Close()

	mockStats.EXPECT().Stats().Return(domain.ChatStats{}, errors.New("boom")).Times(1)
	server := httptest.NewServer(NewDebugServer(slog.Default(), db, mockStats, nil).Handler())
	defer server.Close()

	status, _ := get(t, server, "/stats")
	req.Equal(http.StatusInternalServerError, status)
}

func TestDefaultMapper(t *testing.T) {
	req := require.New(t)

	row := DefaultMapper("history:636f6d6d6f6e5f726f6f6d:0000000000000000001:abc", 12)

	req.Equal("history", row.Namespace)
	req.Equal(12, row.Size)
}
