package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// CandidateStore implements storage.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *Pool
}

// NewCandidateStore creates a new CandidateStore.
func NewCandidateStore(pool *Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandidateStore = (*CandidateStore)(nil)

const candidateColumns = `
	name, ticker, message, mention_count, confidence, found_on_market,
	token_address, first_seen_at, last_mentioned, notified_at
`

// Insert adds a new candidate. Returns ErrDuplicateKey if the name exists.
func (s *CandidateStore) Insert(ctx context.Context, c *domain.CandidateToken) error {
	query := `
		INSERT INTO candidate_tokens (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		c.Name,
		c.Ticker,
		c.Message,
		c.MentionCount,
		c.Confidence,
		c.FoundOnMarket,
		c.TokenAddress,
		c.FirstSeenAt,
		c.LastMentioned,
		c.NotifiedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// GetByName retrieves a candidate by exact name. Returns ErrNotFound if not exists.
func (s *CandidateStore) GetByName(ctx context.Context, name string) (*domain.CandidateToken, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM candidate_tokens
		WHERE name = $1
	`

	row := s.pool.QueryRow(ctx, query, name)
	c, err := scanCandidate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get candidate by name: %w", err)
	}
	return c, nil
}

// Update commits a checked-out candidate. Returns ErrNotFound if the
// candidate was never inserted.
func (s *CandidateStore) Update(ctx context.Context, c *domain.CandidateToken) error {
	query := `
		UPDATE candidate_tokens SET
			ticker = $2,
			message = $3,
			mention_count = $4,
			confidence = $5,
			found_on_market = $6,
			token_address = $7,
			last_mentioned = $8,
			notified_at = $9
		WHERE name = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		c.Name,
		c.Ticker,
		c.Message,
		c.MentionCount,
		c.Confidence,
		c.FoundOnMarket,
		c.TokenAddress,
		c.LastMentioned,
		c.NotifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListUnreconciled retrieves candidates not yet matched to the marketplace,
// ordered by confidence DESC.
func (s *CandidateStore) ListUnreconciled(ctx context.Context) ([]*domain.CandidateToken, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM candidate_tokens
		WHERE found_on_market = FALSE
		ORDER BY confidence DESC, name ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// scanCandidate scans a single row into CandidateToken.
func scanCandidate(row pgx.Row) (*domain.CandidateToken, error) {
	var c domain.CandidateToken

	err := row.Scan(
		&c.Name,
		&c.Ticker,
		&c.Message,
		&c.MentionCount,
		&c.Confidence,
		&c.FoundOnMarket,
		&c.TokenAddress,
		&c.FirstSeenAt,
		&c.LastMentioned,
		&c.NotifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// scanCandidates scans multiple rows into CandidateTokens.
func scanCandidates(rows pgx.Rows) ([]*domain.CandidateToken, error) {
	var candidates []*domain.CandidateToken
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}
