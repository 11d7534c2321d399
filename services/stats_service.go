package services

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"fmt"
)

type sessionCounter interface {
	Len() int
}

type roomIndex interface {
	ParticipantCount(room domain.RoomName) int
}

// StatsService rolls up sessions, room membership and stored messages. It never mutates them.
type StatsService struct {
	sessions   sessionCounter
	rooms      roomIndex
	repository repositories.IMessageRepository
}

func NewStatsService(sessions sessionCounter, rooms roomIndex, repository repositories.IMessageRepository) *StatsService {
	return &StatsService{sessions: sessions, rooms: rooms, repository: repository}
}

func (s *StatsService) Stats() (domain.ChatStats, error) {
	storeStats, err := s.repository.Stats()
	if err != nil {
		return domain.ChatStats{}, fmt.Errorf("store stats: %w", err)
	}

	stats := domain.ChatStats{
		TotalMessages:     storeStats.TotalMessages,
		TotalRooms:        storeStats.TotalRooms,
		ConnectedUsers:    s.sessions.Len(),
		RoomMessageCounts: storeStats.RoomCounts,
		PrivateChatInfo:   make(map[domain.RoomName]domain.PrivateChatInfo, len(storeStats.PrivateChats)),
	}
	for _, chat := range storeStats.PrivateChats {
		participants := s.rooms.ParticipantCount(chat.Room)
		if participants > 0 {
			stats.ActivePrivateChats++
		}
		stats.PrivateChatInfo[chat.Room] = domain.PrivateChatInfo{
			Participants: participants,
			MessageCount: storeStats.RoomCounts[chat.Room],
			LastMessage:  chat.LastMessageAt,
			CreatedAt:    chat.CreatedAt,
		}
	}
	return stats, nil
}
