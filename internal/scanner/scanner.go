// Package scanner runs the top-level scan loop tying the marketplace
// sweep, risk analysis, channel discovery and candidate reconciliation
// together.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptspider/internal/discovery"
	"cryptspider/internal/domain"
	"cryptspider/internal/logger"
	"cryptspider/internal/marketdata"
	"cryptspider/internal/notify"
	"cryptspider/internal/report"
	"cryptspider/internal/risk"
	"cryptspider/internal/storage"
	"cryptspider/internal/tracker"
)

// Default loop timing.
const (
	DefaultInterval      = 10 * time.Minute
	DefaultErrorCooldown = time.Minute
	DefaultCleanupEvery  = 6
)

// Marketplace is the market-sweep side of the marketplace client.
type Marketplace interface {
	FetchListings(ctx context.Context) ([]marketdata.TokenSummary, error)
	FetchProfile(ctx context.Context, sum marketdata.TokenSummary) (*domain.TokenProfile, error)
}

// Options wires a Scanner. All fields are required unless noted.
type Options struct {
	Tokens    storage.TokenStore
	Market    Marketplace
	Analyzer  *risk.Analyzer
	Reporter  report.Generator
	Notifier  notify.Notifier
	Discovery *discovery.Engine
	Tracker   *tracker.Tracker

	Interval      time.Duration // default 10m
	ErrorCooldown time.Duration // default 1m
	CleanupEvery  int           // run cleanup and stats every Nth cycle, default 6
}

// Scanner drives the periodic scan cycle.
type Scanner struct {
	opts   Options
	cycles int
	now    func() time.Time
	log    *logger.Logger
}

// New creates a scanner from options, applying timing defaults.
func New(opts Options) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ErrorCooldown <= 0 {
		opts.ErrorCooldown = DefaultErrorCooldown
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = DefaultCleanupEvery
	}
	return &Scanner{
		opts: opts,
		now:  time.Now,
		log:  logger.Get().With("component", "scanner"),
	}
}

// WithClock overrides the time source. Used in tests.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Run executes scan cycles until the context is cancelled. A failed
// cycle is logged and retried after the error cooldown; no partial
// state carries over, the next cycle starts fresh.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Infof("scan loop started (interval %s)", s.opts.Interval)
	for {
		pause := s.opts.Interval
		if err := s.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Errorf("scan cycle failed: %v", err)
			pause = s.opts.ErrorCooldown
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// Cycle runs one full scan pass: marketplace sweep, channel discovery,
// active-channel crawl, candidate reconciliation and (periodically)
// cleanup.
func (s *Scanner) Cycle(ctx context.Context) error {
	s.cycles++

	if err := s.sweepMarketplace(ctx); err != nil {
		return err
	}
	if err := s.opts.Discovery.Discover(ctx); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := s.opts.Discovery.CrawlActive(ctx); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if err := s.opts.Tracker.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile candidates: %w", err)
	}

	if s.cycles%s.opts.CleanupEvery == 0 {
		if err := s.opts.Discovery.Cleanup(ctx); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		if stats, err := s.opts.Discovery.Stats(ctx); err == nil {
			s.log.Infof("channels: %d total, %d active, %d high-relevance",
				stats.Total, stats.Active, stats.HighRelevance)
		}
	}
	return nil
}

// sweepMarketplace fetches current listings, assesses each token and
// persists the result. A single token failing is logged and skipped.
func (s *Scanner) sweepMarketplace(ctx context.Context) error {
	listings, err := s.opts.Market.FetchListings(ctx)
	if err != nil {
		return fmt.Errorf("fetch listings: %w", err)
	}
	s.log.Infof("assessing %d listed tokens", len(listings))

	for _, sum := range listings {
		if err := s.assessToken(ctx, sum); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warnf("assessment of %s failed: %v", sum.Ticker, err)
		}
	}
	return nil
}

func (s *Scanner) assessToken(ctx context.Context, sum marketdata.TokenSummary) error {
	profile, err := s.opts.Market.FetchProfile(ctx, sum)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	assessment := s.opts.Analyzer.Assess(ctx, profile)

	// Alert only on a fresh scam verdict, not on every re-scan.
	newVerdict := assessment.IsScam
	if prev, err := s.opts.Tokens.GetByAddress(ctx, sum.Address); err == nil {
		newVerdict = assessment.IsScam && !prev.IsScam
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("look up token: %w", err)
	}

	token := tokenFromSummary(sum, assessment, s.now())
	if err := s.opts.Tokens.Upsert(ctx, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if len(profile.Holders) > 0 {
		if err := s.opts.Tokens.ReplaceHolders(ctx, token.Address, profile.Holders); err != nil {
			s.log.Warnf("persist holders for %s: %v", token.Ticker, err)
		}
	}
	if len(profile.Transactions) > 0 {
		if err := s.opts.Tokens.ReplaceTransactions(ctx, token.Address, profile.Transactions); err != nil {
			s.log.Warnf("persist transactions for %s: %v", token.Ticker, err)
		}
	}

	if newVerdict {
		text, err := s.opts.Reporter.Generate(ctx, token, assessment)
		if err != nil {
			s.log.Warnf("report for %s failed: %v", token.Ticker, err)
		}
		if err := s.opts.Notifier.ScamAlert(ctx, token, assessment, text); err != nil {
			s.log.Warnf("scam alert for %s failed: %v", token.Ticker, err)
		}
	}

	if err := s.opts.Discovery.ScanTokenSocials(ctx, token, profile.Socials); err != nil {
		s.log.Warnf("social scan for %s: %v", token.Ticker, err)
	}
	return nil
}

func tokenFromSummary(sum marketdata.TokenSummary, assessment domain.RiskAssessment, now time.Time) *domain.Token {
	return &domain.Token{
		Address:         sum.Address,
		Ticker:          sum.Ticker,
		ShortName:       sum.ShortName,
		Name:            sum.Name,
		Description:     sum.Description,
		TotalSupply:     sum.TotalSupply,
		MintedAt:        sum.MintedAt,
		CreatorAddress:  sum.CreatorAddress,
		Website:         sum.Website,
		Telegram:        sum.Telegram,
		Twitter:         sum.Twitter,
		ImageURL:        sum.ImageURL,
		IsScam:          assessment.IsScam,
		ScamProbability: assessment.Score,
		LastUpdated:     now,
	}
}
