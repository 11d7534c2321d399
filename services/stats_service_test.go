package services

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestStatsService_Stats(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := mocks.NewMockIMessageRepository(ctrl)

	presence := runtime.NewPresence(slog.Default(), false)
	registry := runtime.NewRegistry()
	active := domain.PrivateRoomName("alice", "bob")
	idle := domain.PrivateRoomName("alice", "carol")

	// Given two connected sessions, only one private room still has members
	_, _ = presence.Connect("alice", "1.1.1.1")
	_, _ = presence.Connect("bob", "2.2.2.2")
	registry.Join("alice", active)
	registry.Join("bob", active)

	mockRepo.EXPECT().Stats().Return(domain.StoreStats{
		TotalMessages: 5,
		TotalRooms:    3,
		RoomCounts:    map[domain.RoomName]int{domain.PublicRoom: 2, active: 2, idle: 1},
		PrivateChats: []domain.PrivateChat{
			{Room: active, Participants: []domain.SessionID{"alice", "bob"}, CreatedAt: "1", LastMessageAt: "2"},
			{Room: idle, Participants: []domain.SessionID{"alice", "carol"}, CreatedAt: "3", LastMessageAt: "3"},
		},
	}, nil).Times(1)

	// When stats are computed
	stats, err := NewStatsService(presence, registry, mockRepo).Stats()

	// Then store figures and live figures are combined
	req.NoError(err)
	req.Equal(5, stats.TotalMessages)
	req.Equal(3, stats.TotalRooms)
	req.Equal(2, stats.ConnectedUsers)
	req.Equal(1, stats.ActivePrivateChats)
	req.Equal(domain.PrivateChatInfo{Participants: 2, MessageCount: 2, LastMessage: "2", CreatedAt: "1"}, stats.PrivateChatInfo[active])
	req.Equal(domain.PrivateChatInfo{Participants: 0, MessageCount: 1, LastMessage: "3", CreatedAt: "3"}, stats.PrivateChatInfo[idle])
}

func TestStatsService_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	boom := errors.New("boom")

	mockRepo.EXPECT().Stats().Return(domain.StoreStats{}, boom).Times(1)

	_, err := NewStatsService(runtime.NewPresence(slog.Default(), false), runtime.NewRegistry(), mockRepo).Stats()
	req.ErrorIs(err, boom)
}
