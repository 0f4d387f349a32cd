// Package risk scores marketplace tokens for scam likelihood from holder
// concentration, liquidity, transaction activity, description red flags
// and the age of the token's chat channel.
package risk

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"cryptspider/internal/domain"
	"cryptspider/internal/logger"
)

// Default analysis parameters.
const (
	DefaultScamThreshold = 0.75
	DefaultMinChannelAge = 14 * 24 * time.Hour
)

// Analyzer aggregates five independent sub-checks into a scam verdict.
type Analyzer struct {
	patterns      []*regexp.Regexp
	threshold     float64
	minChannelAge time.Duration
	classifier    Classifier
	now           func() time.Time
	log           *logger.Logger
}

// Option configures Analyzer.
type Option func(*Analyzer)

// WithThreshold sets the scam decision threshold.
func WithThreshold(t float64) Option {
	return func(a *Analyzer) { a.threshold = t }
}

// WithMinChannelAge sets the channel age below which a token's chat is
// treated as fake.
func WithMinChannelAge(d time.Duration) Option {
	return func(a *Analyzer) { a.minChannelAge = d }
}

// WithClassifier sets the sentiment classifier.
func WithClassifier(c Classifier) Option {
	return func(a *Analyzer) { a.classifier = c }
}

// WithClock sets the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer compiles the description red-flag patterns and builds an
// analyzer. Invalid patterns fail construction.
func NewAnalyzer(patterns []string, opts ...Option) (*Analyzer, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile scam pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	a := &Analyzer{
		patterns:      compiled,
		threshold:     DefaultScamThreshold,
		minChannelAge: DefaultMinChannelAge,
		classifier:    FixedClassifier{},
		now:           time.Now,
		log:           logger.Get().With("component", "risk"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assess runs all five sub-checks over a token profile and returns the
// aggregate verdict. The score is the arithmetic mean of the sub-scores;
// the token is marked a scam at or above the threshold.
func (a *Analyzer) Assess(ctx context.Context, p *domain.TokenProfile) domain.RiskAssessment {
	var factors []domain.RiskFactor
	var total float64

	score, fs := CheckFakeChannel(p.Socials, a.patterns, a.minChannelAge, a.now())
	total += score
	factors = append(factors, fs...)

	score, fs = AnalyzeHolders(p.Holders)
	total += score
	factors = append(factors, fs...)

	score, fs = AnalyzeLiquidity(p.Liquidity)
	total += score
	factors = append(factors, fs...)

	score, fs = AnalyzeTransactions(p.Transactions)
	total += score
	factors = append(factors, fs...)

	score, fs = a.analyzeDescription(ctx, p.Description)
	total += score
	factors = append(factors, fs...)

	mean := total / 5
	return domain.RiskAssessment{
		Score:   mean,
		IsScam:  mean >= a.threshold,
		Factors: factors,
	}
}

// CheckFakeChannel flags tokens whose linked chat channel looks fake:
// a red-flag description, or a creation date younger than minAge. Returns
// 0.8 when any check fires, 0.0 otherwise; a channel link carrying neither
// a description nor a creation date cannot be flagged.
func CheckFakeChannel(socials []domain.SocialLink, patterns []*regexp.Regexp, minAge time.Duration, now time.Time) (float64, []domain.RiskFactor) {
	var factors []domain.RiskFactor
	for _, link := range socials {
		if link.Type != "telegram" {
			continue
		}
		if link.Description != "" {
			for _, re := range patterns {
				if re.MatchString(link.Description) {
					factors = append(factors, domain.RiskFactor{
						Kind:    domain.FactorFakeChannel,
						Message: fmt.Sprintf("chat channel description matches red-flag pattern %q", re.String()),
						Score:   0.8,
					})
					break
				}
			}
		}
		if link.CreatedAt != nil {
			if age := now.Sub(*link.CreatedAt); age < minAge {
				factors = append(factors, domain.RiskFactor{
					Kind:    domain.FactorFakeChannel,
					Message: fmt.Sprintf("chat channel is %d days old, younger than %d days", int(age.Hours()/24), int(minAge.Hours()/24)),
					Score:   0.8,
				})
			}
		}
	}
	if len(factors) > 0 {
		return 0.8, factors
	}
	return 0, nil
}

// AnalyzeHolders scores holder concentration. Each matched rule raises
// the score; rules never lower it.
func AnalyzeHolders(holders []domain.Holder) (float64, []domain.RiskFactor) {
	if len(holders) == 0 {
		return 0.5, []domain.RiskFactor{{
			Kind:    domain.FactorHolders,
			Message: "holder data unavailable",
			Score:   0.5,
		}}
	}

	sorted := append([]domain.Holder(nil), holders...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Percent > sorted[j].Percent
	})

	var score float64
	var factors []domain.RiskFactor
	raise := func(s float64, msg string) {
		if s > score {
			score = s
		}
		factors = append(factors, domain.RiskFactor{Kind: domain.FactorHolders, Message: msg, Score: s})
	}

	top := sorted[0].Percent
	switch {
	case top > 50:
		raise(0.95, fmt.Sprintf("top holder owns %.1f%% of supply", top))
	case top > 30:
		raise(0.7, fmt.Sprintf("top holder owns %.1f%% of supply", top))
	}

	if len(sorted) < 10 {
		raise(0.6, fmt.Sprintf("only %d holders", len(sorted)))
	}

	var top5 float64
	for i := 0; i < len(sorted) && i < 5; i++ {
		top5 += sorted[i].Percent
	}
	if top5 > 90 {
		raise(0.8, fmt.Sprintf("top 5 holders own %.1f%% of supply", top5))
	}

	return score, factors
}

// AnalyzeLiquidity scores pool liquidity in USD.
func AnalyzeLiquidity(liq *domain.Liquidity) (float64, []domain.RiskFactor) {
	if liq == nil {
		return 0.5, []domain.RiskFactor{{
			Kind:    domain.FactorLiquidity,
			Message: "liquidity data unavailable",
			Score:   0.5,
		}}
	}

	switch {
	case liq.USD < 1000:
		return 0.8, []domain.RiskFactor{{
			Kind:    domain.FactorLiquidity,
			Message: fmt.Sprintf("very low liquidity: $%.0f", liq.USD),
			Score:   0.8,
		}}
	case liq.USD < 5000:
		return 0.5, []domain.RiskFactor{{
			Kind:    domain.FactorLiquidity,
			Message: fmt.Sprintf("low liquidity: $%.0f", liq.USD),
			Score:   0.5,
		}}
	}
	return 0, nil
}

// AnalyzeTransactions scores on-chain activity. An empty history is
// absent data, not low activity.
func AnalyzeTransactions(txs []domain.Transaction) (float64, []domain.RiskFactor) {
	if len(txs) == 0 {
		return 0.5, []domain.RiskFactor{{
			Kind:    domain.FactorTransactions,
			Message: "transaction data unavailable",
			Score:   0.5,
		}}
	}

	if len(txs) < 5 {
		return 0.6, []domain.RiskFactor{{
			Kind:    domain.FactorTransactions,
			Message: fmt.Sprintf("only %d transactions", len(txs)),
			Score:   0.6,
		}}
	}
	return 0, nil
}

// analyzeDescription checks the description against red-flag patterns
// (first match decides) and lets a confidently very-negative sentiment
// raise the score. Classifier failures skip the sentiment step.
func (a *Analyzer) analyzeDescription(ctx context.Context, description string) (float64, []domain.RiskFactor) {
	if description == "" {
		return 0.5, []domain.RiskFactor{{
			Kind:    domain.FactorDescription,
			Message: "description unavailable",
			Score:   0.5,
		}}
	}

	var score float64
	var factors []domain.RiskFactor
	for _, re := range a.patterns {
		if re.MatchString(description) {
			score = 0.7
			factors = append(factors, domain.RiskFactor{
				Kind:    domain.FactorDescription,
				Message: fmt.Sprintf("description matches red-flag pattern %q", re.String()),
				Score:   0.7,
			})
			break
		}
	}

	sentiment, err := a.classifier.Classify(ctx, description)
	if err != nil {
		a.log.Warnf("sentiment classification failed: %v", err)
		return score, factors
	}
	if sentiment.Label == "very negative" && sentiment.Confidence > 0.7 && score < 0.6 {
		score = 0.6
		factors = append(factors, domain.RiskFactor{
			Kind:    domain.FactorDescription,
			Message: fmt.Sprintf("community sentiment very negative (confidence %.2f)", sentiment.Confidence),
			Score:   0.6,
		})
	}

	return score, factors
}
