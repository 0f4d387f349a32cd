package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"cryptspider/internal/domain"
	"cryptspider/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	address, ticker, short_name, name, description, total_supply,
	minted_at, creator_address, website, telegram, twitter, image_url,
	is_scam, scam_probability, last_updated
`

// Upsert inserts a token or replaces the existing row keyed by address.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (address) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			short_name = EXCLUDED.short_name,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			total_supply = EXCLUDED.total_supply,
			minted_at = EXCLUDED.minted_at,
			creator_address = EXCLUDED.creator_address,
			website = EXCLUDED.website,
			telegram = EXCLUDED.telegram,
			twitter = EXCLUDED.twitter,
			image_url = EXCLUDED.image_url,
			is_scam = EXCLUDED.is_scam,
			scam_probability = EXCLUDED.scam_probability,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.pool.Exec(ctx, query,
		t.Address,
		t.Ticker,
		t.ShortName,
		t.Name,
		t.Description,
		t.TotalSupply,
		t.MintedAt,
		t.CreatorAddress,
		t.Website,
		t.Telegram,
		t.Twitter,
		t.ImageURL,
		t.IsScam,
		t.ScamProbability,
		t.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// Search retrieves tokens whose name or ticker contains the query,
// case-insensitive. Returns ErrInvalidInput for a blank query.
func (s *TokenStore) Search(ctx context.Context, query string) ([]*domain.Token, error) {
	if strings.TrimSpace(query) == "" {
		return nil, storage.ErrInvalidInput
	}

	sql := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE name ILIKE '%' || $1 || '%' OR ticker ILIKE '%' || $1 || '%'
		ORDER BY last_updated DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("search tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ReplaceHolders replaces the stored holder list for a token.
func (s *TokenStore) ReplaceHolders(ctx context.Context, address string, holders []domain.Holder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM token_holders WHERE token_address = $1`, address); err != nil {
		return fmt.Errorf("delete holders: %w", err)
	}

	query := `
		INSERT INTO token_holders (token_address, holder_address, amount, percent)
		VALUES ($1, $2, $3, $4)
	`
	for _, h := range holders {
		if _, err := tx.Exec(ctx, query, address, h.Address, h.Amount, h.Percent); err != nil {
			return fmt.Errorf("insert holder: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetHolders retrieves the stored holder list, ordered by percent DESC.
func (s *TokenStore) GetHolders(ctx context.Context, address string) ([]domain.Holder, error) {
	query := `
		SELECT holder_address, amount, percent
		FROM token_holders
		WHERE token_address = $1
		ORDER BY percent DESC, holder_address ASC
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get holders: %w", err)
	}
	defer rows.Close()

	var holders []domain.Holder
	for rows.Next() {
		var h domain.Holder
		if err := rows.Scan(&h.Address, &h.Amount, &h.Percent); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holders: %w", err)
	}
	return holders, nil
}

// ReplaceTransactions replaces the stored transaction list for a token.
func (s *TokenStore) ReplaceTransactions(ctx context.Context, address string, txs []domain.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM token_transactions WHERE token_address = $1`, address); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}

	query := `
		INSERT INTO token_transactions (token_address, hash, from_address, to_address, amount, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, t := range txs {
		if _, err := tx.Exec(ctx, query, address, t.Hash, t.FromAddress, t.ToAddress, t.Amount, t.Timestamp); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetTransactions retrieves transactions, ordered by timestamp ASC.
func (s *TokenStore) GetTransactions(ctx context.Context, address string) ([]domain.Transaction, error) {
	query := `
		SELECT hash, from_address, to_address, amount, timestamp
		FROM token_transactions
		WHERE token_address = $1
		ORDER BY timestamp ASC, hash ASC
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.Hash, &t.FromAddress, &t.ToAddress, &t.Amount, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// scanToken scans a single row into Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token

	err := row.Scan(
		&t.Address,
		&t.Ticker,
		&t.ShortName,
		&t.Name,
		&t.Description,
		&t.TotalSupply,
		&t.MintedAt,
		&t.CreatorAddress,
		&t.Website,
		&t.Telegram,
		&t.Twitter,
		&t.ImageURL,
		&t.IsScam,
		&t.ScamProbability,
		&t.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTokens scans multiple rows into Tokens.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}
