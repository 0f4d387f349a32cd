package storage

import (
	"context"
	"time"

	"cryptspider/internal/domain"
)

// TokenStore provides access to marketplace token storage.
type TokenStore interface {
	// Upsert inserts a token or replaces the existing row keyed by address.
	Upsert(ctx context.Context, t *domain.Token) error

	// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Token, error)

	// Search retrieves tokens whose name or ticker contains the query
	// (case-insensitive). Used by candidate reconciliation.
	Search(ctx context.Context, query string) ([]*domain.Token, error)

	// ReplaceHolders replaces the stored holder list for a token.
	ReplaceHolders(ctx context.Context, address string, holders []domain.Holder) error

	// GetHolders retrieves the stored holder list, ordered by percent DESC.
	GetHolders(ctx context.Context, address string) ([]domain.Holder, error)

	// ReplaceTransactions replaces the stored transaction list for a token.
	ReplaceTransactions(ctx context.Context, address string, txs []domain.Transaction) error

	// GetTransactions retrieves transactions, ordered by timestamp ASC.
	GetTransactions(ctx context.Context, address string) ([]domain.Transaction, error)
}

// ChannelStore provides access to monitored channel storage.
// Engines check a channel out (Get*), mutate it, and commit (Update) at
// defined checkpoints; there is no partial-field update API.
type ChannelStore interface {
	// Insert adds a new channel. Returns ErrDuplicateKey if channel_id
	// or username already exists.
	Insert(ctx context.Context, c *domain.Channel) error

	// GetByID retrieves a channel by platform identifier.
	GetByID(ctx context.Context, channelID string) (*domain.Channel, error)

	// GetByUsername retrieves a channel by username.
	GetByUsername(ctx context.Context, username string) (*domain.Channel, error)

	// Update commits a checked-out channel. Returns ErrNotFound if the
	// channel was never inserted.
	Update(ctx context.Context, c *domain.Channel) error

	// ListActive retrieves active channels ordered by relevance DESC.
	ListActive(ctx context.Context) ([]*domain.Channel, error)

	// ListUnscanned retrieves up to limit active channels that have never
	// been scanned, oldest added first.
	ListUnscanned(ctx context.Context, limit int) ([]*domain.Channel, error)

	// ListRetirable retrieves active channels with relevance below
	// maxRelevance whose last scan is older than scannedBefore.
	ListRetirable(ctx context.Context, maxRelevance float64, scannedBefore time.Time) ([]*domain.Channel, error)

	// CountActive returns the number of active channels.
	CountActive(ctx context.Context) (int, error)

	// Count returns the total number of channels, retired included.
	Count(ctx context.Context) (int, error)
}

// CandidateStore provides access to candidate token storage.
type CandidateStore interface {
	// Insert adds a new candidate. Returns ErrDuplicateKey if the name exists.
	Insert(ctx context.Context, c *domain.CandidateToken) error

	// GetByName retrieves a candidate by exact name.
	GetByName(ctx context.Context, name string) (*domain.CandidateToken, error)

	// Update commits a checked-out candidate.
	Update(ctx context.Context, c *domain.CandidateToken) error

	// ListUnreconciled retrieves candidates not yet matched to the
	// marketplace, ordered by confidence DESC.
	ListUnreconciled(ctx context.Context) ([]*domain.CandidateToken, error)
}

// MessageStore archives crawled chat messages. Append-only.
type MessageStore interface {
	// InsertBulk archives a batch of messages.
	InsertBulk(ctx context.Context, msgs []*domain.ChatMessage) error
}
