package memory

import (
	"context"
	"sync"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// MessageStore is an in-memory implementation of storage.MessageStore.
// Used by the one-shot scanner and tests; the daemon archives to ClickHouse.
type MessageStore struct {
	mu   sync.RWMutex
	data []*domain.ChatMessage
}

// NewMessageStore creates a new in-memory message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// InsertBulk archives a batch of messages.
func (s *MessageStore) InsertBulk(_ context.Context, msgs []*domain.ChatMessage) error {
	for _, m := range msgs {
		if m == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		msgCopy := *m
		msgCopy.TokenNames = append([]string(nil), m.TokenNames...)
		s.data = append(s.data, &msgCopy)
	}
	return nil
}

// All returns a copy of every archived message, in insertion order.
// Test helper; not part of the storage.MessageStore contract.
func (s *MessageStore) All() []*domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ChatMessage, 0, len(s.data))
	for _, m := range s.data {
		msgCopy := *m
		msgCopy.TokenNames = append([]string(nil), m.TokenNames...)
		result = append(result, &msgCopy)
	}
	return result
}

// Verify interface compliance at compile time.
var _ storage.MessageStore = (*MessageStore)(nil)
