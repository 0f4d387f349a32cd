package memory

import (
	"context"
	"sort"
	"sync"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// CandidateStore is an in-memory implementation of storage.CandidateStore.
type CandidateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CandidateToken // keyed by name
}

// NewCandidateStore creates a new in-memory candidate store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		data: make(map[string]*domain.CandidateToken),
	}
}

// Insert adds a new candidate. Returns ErrDuplicateKey if the name exists.
func (s *CandidateStore) Insert(_ context.Context, c *domain.CandidateToken) error {
	if c == nil || c.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.Name]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	candidateCopy := *c
	s.data[c.Name] = &candidateCopy
	return nil
}

// GetByName retrieves a candidate by exact name. Returns ErrNotFound if not exists.
func (s *CandidateStore) GetByName(_ context.Context, name string) (*domain.CandidateToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[name]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	candidateCopy := *c
	return &candidateCopy, nil
}

// Update commits a checked-out candidate. Returns ErrNotFound if the
// candidate was never inserted.
func (s *CandidateStore) Update(_ context.Context, c *domain.CandidateToken) error {
	if c == nil || c.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.Name]; !exists {
		return storage.ErrNotFound
	}

	candidateCopy := *c
	s.data[c.Name] = &candidateCopy
	return nil
}

// ListUnreconciled retrieves candidates not yet matched to the marketplace,
// ordered by confidence DESC.
func (s *CandidateStore) ListUnreconciled(_ context.Context) ([]*domain.CandidateToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CandidateToken
	for _, c := range s.data {
		if !c.FoundOnMarket {
			candidateCopy := *c
			result = append(result, &candidateCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence > result[j].Confidence
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.CandidateStore = (*CandidateStore)(nil)
