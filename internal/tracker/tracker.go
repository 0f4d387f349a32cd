// Package tracker follows candidate tokens: names seen in chat text that
// may or may not exist on the marketplace yet.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptspider/internal/domain"
	"cryptspider/internal/logger"
	"cryptspider/internal/marketdata"
	"cryptspider/internal/notify"
	"cryptspider/internal/storage"
)

// Confidence lifecycle constants.
const (
	initialConfidence    = 0.3
	mentionIncrement     = 0.1
	reconciledConfidence = 0.9
	notifyThreshold      = 0.5
)

// Marketplace is the lookup side of the marketplace client used during
// reconciliation.
type Marketplace interface {
	SearchToken(ctx context.Context, name string) (*marketdata.TokenSummary, error)
}

// Tracker maintains the candidate token lifecycle.
type Tracker struct {
	candidates storage.CandidateStore
	tokens     storage.TokenStore
	market     Marketplace
	notifier   notify.Notifier
	now        func() time.Time
	log        *logger.Logger
}

// NewTracker wires a candidate tracker.
func NewTracker(candidates storage.CandidateStore, tokens storage.TokenStore, market Marketplace, notifier notify.Notifier) *Tracker {
	return &Tracker{
		candidates: candidates,
		tokens:     tokens,
		market:     market,
		notifier:   notifier,
		now:        time.Now,
		log:        logger.Get().With("component", "tracker"),
	}
}

// WithClock overrides the time source. Used in tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// RecordMention registers one sighting of a candidate name. A repeat
// mention bumps the count and raises confidence by a fixed increment,
// capped at 1.0; a first mention creates the candidate at low confidence
// with the originating message text.
func (t *Tracker) RecordMention(ctx context.Context, name, message string) error {
	now := t.now()

	c, err := t.candidates.GetByName(ctx, name)
	switch {
	case err == nil:
		c.MentionCount++
		c.Confidence = min64(1.0, c.Confidence+mentionIncrement)
		c.LastMentioned = now
		if err := t.candidates.Update(ctx, c); err != nil {
			return fmt.Errorf("update candidate %s: %w", name, err)
		}
		return nil

	case errors.Is(err, storage.ErrNotFound):
		c = &domain.CandidateToken{
			Name:          name,
			Message:       message,
			MentionCount:  1,
			Confidence:    initialConfidence,
			FirstSeenAt:   now,
			LastMentioned: now,
		}
		if err := t.candidates.Insert(ctx, c); err != nil {
			// A concurrent insert of the same name is a repeat mention.
			if errors.Is(err, storage.ErrDuplicateKey) {
				return t.RecordMention(ctx, name, message)
			}
			return fmt.Errorf("insert candidate %s: %w", name, err)
		}
		t.log.Infof("new candidate token %q", name)
		return nil

	default:
		return fmt.Errorf("look up candidate %s: %w", name, err)
	}
}

// Reconcile matches unreconciled candidates against known tokens and the
// marketplace. A match pins confidence high and records the address; an
// unmatched candidate above the notify threshold is announced to
// operators exactly once.
func (t *Tracker) Reconcile(ctx context.Context) error {
	pending, err := t.candidates.ListUnreconciled(ctx)
	if err != nil {
		return fmt.Errorf("list unreconciled candidates: %w", err)
	}

	for _, c := range pending {
		address, err := t.findOnMarket(ctx, c.Name)
		if err != nil {
			t.log.Warnf("market lookup for %q failed: %v", c.Name, err)
			continue
		}

		if address != "" {
			c.FoundOnMarket = true
			c.TokenAddress = &address
			c.Confidence = reconciledConfidence
			if err := t.candidates.Update(ctx, c); err != nil {
				t.log.Warnf("commit reconciled candidate %q: %v", c.Name, err)
			}
			t.log.Infof("candidate %q reconciled to %s", c.Name, address)
			continue
		}

		if c.Confidence > notifyThreshold && c.NotifiedAt == nil {
			if err := t.notifier.CandidateAlert(ctx, c); err != nil {
				t.log.Warnf("candidate alert for %q failed: %v", c.Name, err)
				continue
			}
			now := t.now()
			c.NotifiedAt = &now
			if err := t.candidates.Update(ctx, c); err != nil {
				t.log.Warnf("commit notified candidate %q: %v", c.Name, err)
			}
		}
	}
	return nil
}

// findOnMarket resolves a candidate name to a token address, checking
// stored tokens first and falling back to a live marketplace search.
func (t *Tracker) findOnMarket(ctx context.Context, name string) (string, error) {
	stored, err := t.tokens.Search(ctx, name)
	if err != nil && !errors.Is(err, storage.ErrInvalidInput) {
		return "", err
	}
	if len(stored) > 0 {
		return stored[0].Address, nil
	}

	sum, err := t.market.SearchToken(ctx, name)
	if err != nil {
		return "", err
	}
	if sum != nil {
		return sum.Address, nil
	}
	return "", nil
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
