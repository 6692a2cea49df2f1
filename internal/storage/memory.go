package storage

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/support-monitor/internal/models"
)

const defaultChannelHistory = 20

type MemoryStorage struct {
	mu             sync.RWMutex
	authorCounts   map[string]int
	joinedAt       map[string]time.Time
	channels       map[string][]string
	channelHistory int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		authorCounts:   make(map[string]int),
		joinedAt:       make(map[string]time.Time),
		channels:       make(map[string][]string),
		channelHistory: defaultChannelHistory,
	}
}

func authorKey(guildID, authorID string) string {
	return guildID + "/" + authorID
}

func (s *MemoryStorage) RecordMessage(ctx context.Context, msg models.InboundMessage) error {
	guildID := ""
	if msg.Guild != nil {
		guildID = msg.Guild.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := authorKey(guildID, msg.Author.ID)
	s.authorCounts[key]++
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	s.noteJoin(key, at)

	history := append(s.channels[msg.Channel.ID], msg.Content)
	if len(history) > s.channelHistory {
		history = append([]string(nil), history[len(history)-s.channelHistory:]...)
	}
	s.channels[msg.Channel.ID] = history
	return nil
}

func (s *MemoryStorage) AuthorMessageCount(ctx context.Context, guildID, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorCounts[authorKey(guildID, authorID)], nil
}

func (s *MemoryStorage) RecentChannelMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.channels[channelID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]string(nil), history...), nil
}

func (s *MemoryStorage) RecordJoin(ctx context.Context, guildID, authorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteJoin(authorKey(guildID, authorID), at)
	return nil
}

// noteJoin keeps the earliest time; callers hold s.mu.
func (s *MemoryStorage) noteJoin(key string, at time.Time) {
	if prev, ok := s.joinedAt[key]; !ok || at.Before(prev) {
		s.joinedAt[key] = at
	}
}

func (s *MemoryStorage) AuthorJoinedAt(ctx context.Context, guildID, authorID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.joinedAt[authorKey(guildID, authorID)]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
