package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu      sync.RWMutex
	tokens  map[string]*domain.Token        // keyed by address
	holders map[string][]domain.Holder      // keyed by address
	txs     map[string][]domain.Transaction // keyed by address
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens:  make(map[string]*domain.Token),
		holders: make(map[string][]domain.Holder),
		txs:     make(map[string][]domain.Transaction),
	}
}

// Upsert inserts a token or replaces the existing row keyed by address.
func (s *TokenStore) Upsert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	tokenCopy := *t
	s.tokens[t.Address] = &tokenCopy
	return nil
}

// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tokens[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	tokenCopy := *t
	return &tokenCopy, nil
}

// Search retrieves tokens whose name or ticker contains the query
// (case-insensitive), ordered by address for determinism.
func (s *TokenStore) Search(_ context.Context, query string) ([]*domain.Token, error) {
	if query == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var result []*domain.Token
	for _, t := range s.tokens {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Ticker), q) {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// ReplaceHolders replaces the stored holder list for a token.
func (s *TokenStore) ReplaceHolders(_ context.Context, address string, holders []domain.Holder) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holders[address] = append([]domain.Holder(nil), holders...)
	return nil
}

// GetHolders retrieves the stored holder list, ordered by percent DESC.
func (s *TokenStore) GetHolders(_ context.Context, address string) ([]domain.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.Holder(nil), s.holders[address]...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Percent > result[j].Percent
	})

	return result, nil
}

// ReplaceTransactions replaces the stored transaction list for a token.
func (s *TokenStore) ReplaceTransactions(_ context.Context, address string, txs []domain.Transaction) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs[address] = append([]domain.Transaction(nil), txs...)
	return nil
}

// GetTransactions retrieves transactions, ordered by timestamp ASC.
func (s *TokenStore) GetTransactions(_ context.Context, address string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.Transaction(nil), s.txs[address]...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
