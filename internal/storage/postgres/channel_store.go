package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// ChannelStore implements storage.ChannelStore using PostgreSQL.
type ChannelStore struct {
	pool *Pool
}

// NewChannelStore creates a new ChannelStore.
func NewChannelStore(pool *Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ChannelStore = (*ChannelStore)(nil)

const channelColumns = `
	channel_id, username, title, description, member_count, created_at,
	added_at, last_scanned_at, is_active, relevance_score, mention_count,
	source, source_details
`

// Insert adds a new channel. Returns ErrDuplicateKey if channel_id or
// username already exists.
func (s *ChannelStore) Insert(ctx context.Context, c *domain.Channel) error {
	query := `
		INSERT INTO channels (` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ChannelID,
		c.Username,
		c.Title,
		c.Description,
		c.MemberCount,
		c.CreatedAt,
		c.AddedAt,
		c.LastScannedAt,
		c.IsActive,
		c.RelevanceScore,
		c.MentionCount,
		c.Source,
		c.SourceDetails,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

// GetByID retrieves a channel by platform identifier. Returns ErrNotFound if not exists.
func (s *ChannelStore) GetByID(ctx context.Context, channelID string) (*domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE channel_id = $1
	`

	row := s.pool.QueryRow(ctx, query, channelID)
	c, err := scanChannel(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get channel by id: %w", err)
	}
	return c, nil
}

// GetByUsername retrieves a channel by username. Returns ErrNotFound if not exists.
func (s *ChannelStore) GetByUsername(ctx context.Context, username string) (*domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE username = $1
	`

	row := s.pool.QueryRow(ctx, query, username)
	c, err := scanChannel(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get channel by username: %w", err)
	}
	return c, nil
}

// Update commits a checked-out channel. Returns ErrNotFound if the channel
// was never inserted.
func (s *ChannelStore) Update(ctx context.Context, c *domain.Channel) error {
	query := `
		UPDATE channels SET
			username = $2,
			title = $3,
			description = $4,
			member_count = $5,
			created_at = $6,
			last_scanned_at = $7,
			is_active = $8,
			relevance_score = $9,
			mention_count = $10,
			source = $11,
			source_details = $12
		WHERE channel_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		c.ChannelID,
		c.Username,
		c.Title,
		c.Description,
		c.MemberCount,
		c.CreatedAt,
		c.LastScannedAt,
		c.IsActive,
		c.RelevanceScore,
		c.MentionCount,
		c.Source,
		c.SourceDetails,
	)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListActive retrieves active channels ordered by relevance DESC.
func (s *ChannelStore) ListActive(ctx context.Context) ([]*domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE is_active = TRUE
		ORDER BY relevance_score DESC, channel_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

// ListUnscanned retrieves up to limit active channels that have never been
// scanned, oldest added first.
func (s *ChannelStore) ListUnscanned(ctx context.Context, limit int) ([]*domain.Channel, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE is_active = TRUE AND last_scanned_at IS NULL
		ORDER BY added_at ASC, channel_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unscanned channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

// ListRetirable retrieves active channels with relevance below maxRelevance
// whose last scan is older than scannedBefore. Never-scanned channels are
// not retirable.
func (s *ChannelStore) ListRetirable(ctx context.Context, maxRelevance float64, scannedBefore time.Time) ([]*domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE is_active = TRUE
		  AND relevance_score < $1
		  AND last_scanned_at IS NOT NULL
		  AND last_scanned_at < $2
		ORDER BY relevance_score ASC, channel_id ASC
	`

	rows, err := s.pool.Query(ctx, query, maxRelevance, scannedBefore)
	if err != nil {
		return nil, fmt.Errorf("list retirable channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows)
}

// CountActive returns the number of active channels.
func (s *ChannelStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels WHERE is_active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active channels: %w", err)
	}
	return count, nil
}

// Count returns the total number of channels, retired included.
func (s *ChannelStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return count, nil
}

// scanChannel scans a single row into Channel.
func scanChannel(row pgx.Row) (*domain.Channel, error) {
	var c domain.Channel

	err := row.Scan(
		&c.ChannelID,
		&c.Username,
		&c.Title,
		&c.Description,
		&c.MemberCount,
		&c.CreatedAt,
		&c.AddedAt,
		&c.LastScannedAt,
		&c.IsActive,
		&c.RelevanceScore,
		&c.MentionCount,
		&c.Source,
		&c.SourceDetails,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// scanChannels scans multiple rows into Channels.
func scanChannels(rows pgx.Rows) ([]*domain.Channel, error) {
	var channels []*domain.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}
