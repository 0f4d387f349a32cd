// Package marketdata talks to the jetton marketplace HTTP API and
// assembles per-token profiles for risk analysis.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptspider/internal/domain"
	"cryptspider/internal/logger"
)

// Default configuration values.
const (
	DefaultTimeout = 20 * time.Second

	// Wallet whose per-token asset balance reflects pool liquidity.
	DefaultReferenceWallet = "EQDjal6NZlYefSz0qYbbKYL_5G7lzdixamDHcXv3sUP0OYMu"
)

// ErrNotFound is returned when the marketplace has no record for the
// requested token or asset.
var ErrNotFound = errors.New("marketdata: not found")

// Marketplace listing views, fetched concurrently and merged in this
// declaration order (first occurrence of an address wins).
var listingViews = []string{
	"jetton/spotlight",
	"jetton/sections/published_at?published=only&pageToken=1",
	"jetton/sections/nearest_to_listing?published=include_listed",
	"jetton/sections/hot?published=include",
	"jetton/sections/live-streams?published=include",
	"jetton/sections/created_at?published=exclude",
}

// Client is the marketplace HTTP client.
type Client struct {
	baseURL         string
	client          *http.Client
	referenceWallet string
	log             *logger.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithReferenceWallet sets the wallet used for liquidity lookups.
func WithReferenceWallet(wallet string) ClientOption {
	return func(c *Client) {
		c.referenceWallet = wallet
	}
}

// NewClient creates a marketplace client for the given API base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{Timeout: DefaultTimeout},
		referenceWallet: DefaultReferenceWallet,
		log:             logger.Get().With("component", "marketdata"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TokenSummary is a marketplace listing entry.
type TokenSummary struct {
	Address        string     `json:"address"`
	Ticker         string     `json:"ticker"`
	ShortName      string     `json:"short_name"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	TotalSupply    float64    `json:"total_supply"`
	MintedAt       *time.Time `json:"minted_at,omitempty"`
	CreatorAddress string     `json:"creator_address"`
	Website        string     `json:"website"`
	Telegram       string     `json:"telegram"`
	Twitter        string     `json:"twitter"`
	ImageURL       string     `json:"image_url"`
}

type listingResponse struct {
	Items []TokenSummary `json:"items"`
}

type TokenDetail struct {
	TokenSummary
	Holders []HolderInfo `json:"holders"`
	Socials []SocialInfo `json:"socials"`
}

// SocialInfo is a social entry in the token detail payload. The
// marketplace reports the platform type in uppercase.
type SocialInfo struct {
	Type        string     `json:"type"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type HolderInfo struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

type reactionsResponse struct {
	Reactions map[string]int `json:"reactions"`
}

type transactionsResponse struct {
	Items []transactionInfo `json:"items"`
}

type transactionInfo struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type assetResponse struct {
	USDValue float64 `json:"usd_value"`
}

// FetchListings retrieves the marketplace listing views concurrently and
// merges them. The first occurrence of an address, in view declaration
// order, wins. A failing view is logged and skipped; an error is returned
// only when every view fails.
func (c *Client) FetchListings(ctx context.Context) ([]TokenSummary, error) {
	results := make([][]TokenSummary, len(listingViews))
	errs := make([]error, len(listingViews))

	g, gctx := errgroup.WithContext(ctx)
	for i, view := range listingViews {
		g.Go(func() error {
			var resp listingResponse
			if err := c.get(gctx, view, &resp); err != nil {
				errs[i] = err
				c.log.Warnf("listing view %s failed: %v", view, err)
				return nil
			}
			results[i] = resp.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	seen := make(map[string]struct{})
	var merged []TokenSummary
	for i, items := range results {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, item := range items {
			if item.Address == "" {
				continue
			}
			if _, dup := seen[item.Address]; dup {
				continue
			}
			seen[item.Address] = struct{}{}
			merged = append(merged, item)
		}
	}
	if failed == len(listingViews) {
		return nil, fmt.Errorf("all %d listing views failed: %w", failed, errs[0])
	}

	return merged, nil
}

// FetchDetails retrieves the full token record by marketplace short name.
func (c *Client) FetchDetails(ctx context.Context, shortName string) (*TokenDetail, error) {
	var detail TokenDetail
	if err := c.get(ctx, "jetton/s/"+url.PathEscape(shortName), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FetchReactions retrieves reaction counts for a token.
func (c *Client) FetchReactions(ctx context.Context, shortName string) (map[string]int, error) {
	var resp reactionsResponse
	if err := c.get(ctx, "reactions/"+url.PathEscape(shortName), &resp); err != nil {
		return nil, err
	}
	return resp.Reactions, nil
}

// FetchTransactions retrieves recent transactions for a token.
func (c *Client) FetchTransactions(ctx context.Context, shortName string) ([]domain.Transaction, error) {
	var resp transactionsResponse
	if err := c.get(ctx, "jetton/s/"+url.PathEscape(shortName)+"/transactions", &resp); err != nil {
		return nil, err
	}
	txs := make([]domain.Transaction, 0, len(resp.Items))
	for _, t := range resp.Items {
		txs = append(txs, domain.Transaction{
			Hash:        t.Hash,
			FromAddress: t.From,
			ToAddress:   t.To,
			Amount:      t.Amount,
			Timestamp:   t.Timestamp,
		})
	}
	return txs, nil
}

// FetchLiquidity retrieves pool liquidity for a token contract, read as
// the reference wallet's USD balance in that asset.
func (c *Client) FetchLiquidity(ctx context.Context, contract string) (*domain.Liquidity, error) {
	path := "wallets/" + url.PathEscape(c.referenceWallet) + "/assets/" + url.PathEscape(contract)
	var resp assetResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &domain.Liquidity{USD: resp.USDValue}, nil
}

// FetchProfile assembles a token profile from the detail, reactions,
// transaction and liquidity endpoints, fetched concurrently. Each failing
// source degrades to an absent value with a warning; the join itself only
// fails on context cancellation.
func (c *Client) FetchProfile(ctx context.Context, sum TokenSummary) (*domain.TokenProfile, error) {
	profile := &domain.TokenProfile{
		Address:     sum.Address,
		Ticker:      sum.Ticker,
		ShortName:   sum.ShortName,
		Name:        sum.Name,
		Description: sum.Description,
		Socials:     socialsFromSummary(sum),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		detail, err := c.FetchDetails(gctx, sum.ShortName)
		if err != nil {
			c.log.Warnf("details for %s unavailable: %v", sum.ShortName, err)
			return nil
		}
		profile.Description = detail.Description
		if len(detail.Socials) > 0 {
			profile.Socials = socialsFromDetail(detail.Socials)
		} else {
			profile.Socials = socialsFromSummary(detail.TokenSummary)
		}
		holders := make([]domain.Holder, 0, len(detail.Holders))
		for _, h := range detail.Holders {
			holders = append(holders, domain.Holder{
				Address: h.Address,
				Amount:  h.Amount,
				Percent: h.Percent,
			})
		}
		profile.Holders = holders
		return nil
	})

	g.Go(func() error {
		reactions, err := c.FetchReactions(gctx, sum.ShortName)
		if err != nil {
			c.log.Warnf("reactions for %s unavailable: %v", sum.ShortName, err)
			return nil
		}
		profile.Reactions = reactions
		return nil
	})

	g.Go(func() error {
		txs, err := c.FetchTransactions(gctx, sum.ShortName)
		if err != nil {
			c.log.Warnf("transactions for %s unavailable: %v", sum.ShortName, err)
			return nil
		}
		profile.Transactions = txs
		return nil
	})

	g.Go(func() error {
		liq, err := c.FetchLiquidity(gctx, sum.Address)
		if err != nil {
			c.log.Warnf("liquidity for %s unavailable: %v", sum.ShortName, err)
			return nil
		}
		profile.Liquidity = liq
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return profile, nil
}

// SearchToken looks a candidate name up against current listings using
// case-insensitive containment on name and ticker. Returns (nil, nil)
// when nothing matches.
func (c *Client) SearchToken(ctx context.Context, name string) (*TokenSummary, error) {
	listings, err := c.FetchListings(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	for _, sum := range listings {
		if strings.Contains(strings.ToLower(sum.Name), needle) ||
			strings.Contains(strings.ToLower(sum.Ticker), needle) {
			match := sum
			return &match, nil
		}
	}
	return nil, nil
}

// socialsFromDetail converts detail social entries, normalizing the
// platform type to lowercase and carrying the channel description and
// creation date through for risk scoring.
func socialsFromDetail(socials []SocialInfo) []domain.SocialLink {
	links := make([]domain.SocialLink, 0, len(socials))
	for _, s := range socials {
		links = append(links, domain.SocialLink{
			Type:        strings.ToLower(s.Type),
			URL:         s.URL,
			Description: s.Description,
			CreatedAt:   s.CreatedAt,
		})
	}
	return links
}

func socialsFromSummary(sum TokenSummary) []domain.SocialLink {
	var links []domain.SocialLink
	if sum.Website != "" {
		links = append(links, domain.SocialLink{Type: "website", URL: sum.Website})
	}
	if sum.Telegram != "" {
		links = append(links, domain.SocialLink{Type: "telegram", URL: sum.Telegram})
	}
	if sum.Twitter != "" {
		links = append(links, domain.SocialLink{Type: "twitter", URL: sum.Twitter})
	}
	return links
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
