package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// ChannelStore is an in-memory implementation of storage.ChannelStore.
type ChannelStore struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Channel // keyed by channel_id
	byUsername map[string]string          // username -> channel_id
}

// NewChannelStore creates a new in-memory channel store.
func NewChannelStore() *ChannelStore {
	return &ChannelStore{
		byID:       make(map[string]*domain.Channel),
		byUsername: make(map[string]string),
	}
}

// Insert adds a new channel. Returns ErrDuplicateKey if channel_id or
// username already exists.
func (s *ChannelStore) Insert(_ context.Context, c *domain.Channel) error {
	if c == nil || c.ChannelID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[c.ChannelID]; exists {
		return storage.ErrDuplicateKey
	}
	if c.Username != "" {
		if _, exists := s.byUsername[c.Username]; exists {
			return storage.ErrDuplicateKey
		}
	}

	// Store a copy to prevent external mutation
	channelCopy := *c
	s.byID[c.ChannelID] = &channelCopy
	if c.Username != "" {
		s.byUsername[c.Username] = c.ChannelID
	}
	return nil
}

// GetByID retrieves a channel by platform identifier. Returns ErrNotFound if not exists.
func (s *ChannelStore) GetByID(_ context.Context, channelID string) (*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.byID[channelID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	channelCopy := *c
	return &channelCopy, nil
}

// GetByUsername retrieves a channel by username. Returns ErrNotFound if not exists.
func (s *ChannelStore) GetByUsername(_ context.Context, username string) (*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byUsername[username]
	if !exists {
		return nil, storage.ErrNotFound
	}

	channelCopy := *s.byID[id]
	return &channelCopy, nil
}

// Update commits a checked-out channel. Returns ErrNotFound if the channel
// was never inserted.
func (s *ChannelStore) Update(_ context.Context, c *domain.Channel) error {
	if c == nil || c.ChannelID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.byID[c.ChannelID]
	if !exists {
		return storage.ErrNotFound
	}

	if prev.Username != "" && prev.Username != c.Username {
		delete(s.byUsername, prev.Username)
	}

	channelCopy := *c
	s.byID[c.ChannelID] = &channelCopy
	if c.Username != "" {
		s.byUsername[c.Username] = c.ChannelID
	}
	return nil
}

// ListActive retrieves active channels ordered by relevance DESC.
func (s *ChannelStore) ListActive(_ context.Context) ([]*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Channel
	for _, c := range s.byID {
		if c.IsActive {
			channelCopy := *c
			result = append(result, &channelCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RelevanceScore != result[j].RelevanceScore {
			return result[i].RelevanceScore > result[j].RelevanceScore
		}
		return result[i].ChannelID < result[j].ChannelID
	})

	return result, nil
}

// ListUnscanned retrieves up to limit active channels that have never been
// scanned, oldest added first.
func (s *ChannelStore) ListUnscanned(_ context.Context, limit int) ([]*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Channel
	for _, c := range s.byID {
		if c.IsActive && c.LastScannedAt == nil {
			channelCopy := *c
			result = append(result, &channelCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].AddedAt.Equal(result[j].AddedAt) {
			return result[i].AddedAt.Before(result[j].AddedAt)
		}
		return result[i].ChannelID < result[j].ChannelID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRetirable retrieves active channels with relevance below maxRelevance
// whose last scan is older than scannedBefore.
func (s *ChannelStore) ListRetirable(_ context.Context, maxRelevance float64, scannedBefore time.Time) ([]*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Channel
	for _, c := range s.byID {
		if !c.IsActive || c.RelevanceScore >= maxRelevance {
			continue
		}
		if c.LastScannedAt == nil || !c.LastScannedAt.Before(scannedBefore) {
			continue
		}
		channelCopy := *c
		result = append(result, &channelCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ChannelID < result[j].ChannelID
	})

	return result, nil
}

// CountActive returns the number of active channels.
func (s *ChannelStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.byID {
		if c.IsActive {
			n++
		}
	}
	return n, nil
}

// Count returns the total number of channels, retired included.
func (s *ChannelStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byID), nil
}

// Verify interface compliance at compile time.
var _ storage.ChannelStore = (*ChannelStore)(nil)
