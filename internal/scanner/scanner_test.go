package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"cryptspider/internal/config"
	"cryptspider/internal/discovery"
	"cryptspider/internal/domain"
	"cryptspider/internal/extract"
	"cryptspider/internal/marketdata"
	"cryptspider/internal/notify"
	"cryptspider/internal/report"
	"cryptspider/internal/risk"
	"cryptspider/internal/storage/memory"
	"cryptspider/internal/telegram"
	"cryptspider/internal/tracker"
)

type fakeMarket struct {
	listings []marketdata.TokenSummary
	profiles map[string]*domain.TokenProfile
}

func (f *fakeMarket) FetchListings(context.Context) ([]marketdata.TokenSummary, error) {
	return f.listings, nil
}

func (f *fakeMarket) FetchProfile(_ context.Context, sum marketdata.TokenSummary) (*domain.TokenProfile, error) {
	return f.profiles[sum.Address], nil
}

func (f *fakeMarket) SearchToken(_ context.Context, name string) (*marketdata.TokenSummary, error) {
	return nil, nil
}

type fakeChat struct{}

func (fakeChat) ResolveChannel(_ context.Context, username string) (*telegram.ChannelInfo, error) {
	return &telegram.ChannelInfo{ID: "id_" + username, Username: username, Title: username}, nil
}

func (fakeChat) Messages(context.Context, string, int) ([]telegram.Message, error) {
	return nil, nil
}

func (fakeChat) SearchChannels(context.Context, string, int) ([]telegram.ChannelInfo, error) {
	return nil, nil
}

func (fakeChat) Join(context.Context, string) error { return nil }

type recordingNotifier struct {
	mu         sync.Mutex
	scamAlerts []string
}

func (n *recordingNotifier) ScamAlert(_ context.Context, token *domain.Token, _ domain.RiskAssessment, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scamAlerts = append(n.scamAlerts, token.Ticker)
	return nil
}

func (n *recordingNotifier) ChannelAlert(context.Context, *domain.Channel) error     { return nil }
func (n *recordingNotifier) CandidateAlert(context.Context, *domain.CandidateToken) error { return nil }

var _ notify.Notifier = (*recordingNotifier)(nil)

func scamProfile(address string) *domain.TokenProfile {
	created := time.Now().AddDate(0, 0, -2)
	return &domain.TokenProfile{
		Address: address,
		Ticker:  "RUG",
		Holders: []domain.Holder{
			{Address: "whale", Percent: 95},
			{Address: "rest", Percent: 5},
		},
		Liquidity:    &domain.Liquidity{USD: 100},
		Transactions: []domain.Transaction{{Hash: "t1"}},
		Description:  "100x guaranteed, ничего без риска",
		Socials: []domain.SocialLink{
			{Type: "telegram", URL: "https://t.me/rug_official", CreatedAt: &created},
		},
	}
}

func newTestScanner(t *testing.T, market *fakeMarket) (*Scanner, *memory.TokenStore, *memory.ChannelStore, *recordingNotifier) {
	t.Helper()

	tokens := memory.NewTokenStore()
	channels := memory.NewChannelStore()
	candidates := memory.NewCandidateStore()
	messages := memory.NewMessageStore()
	notifier := &recordingNotifier{}

	analyzer, err := risk.NewAnalyzer([]string{"(?i)100x", "без.{0,10}риска"})
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	cfg := config.DiscoveryConfig{
		TokenKeywords:     []string{"token", "токен"},
		MaxChannels:       50,
		MaxChannelsPerRun: 5,
		SearchDelay:       time.Millisecond,
		SweepMessageLimit: 50,
		CrawlMessageLimit: 100,
		MinRelevance:      0.6,
		RetireRelevance:   0.3,
		RetireAfterDays:   30,
	}
	trk := tracker.NewTracker(candidates, tokens, market, notifier)
	eng := discovery.NewEngine(channels, messages, fakeChat{}, extract.NewExtractor(cfg.TokenKeywords), trk, notifier, cfg)

	s := New(Options{
		Tokens:    tokens,
		Market:    market,
		Analyzer:  analyzer,
		Reporter:  report.NoopGenerator{},
		Notifier:  notifier,
		Discovery: eng,
		Tracker:   trk,
	})
	return s, tokens, channels, notifier
}

func TestCycle_FlagsAndPersistsScamToken(t *testing.T) {
	market := &fakeMarket{
		listings: []marketdata.TokenSummary{{Address: "EQrug", Ticker: "RUG", Name: "Rug Token"}},
		profiles: map[string]*domain.TokenProfile{"EQrug": scamProfile("EQrug")},
	}
	s, tokens, channels, notifier := newTestScanner(t, market)
	ctx := context.Background()

	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	tok, err := tokens.GetByAddress(ctx, "EQrug")
	if err != nil {
		t.Fatalf("Token not persisted: %v", err)
	}
	if !tok.IsScam {
		t.Errorf("Expected scam verdict, got %+v", tok)
	}
	// channel 0.8, holders 0.95, liquidity 0.8, transactions 0.6, description 0.7
	if tok.ScamProbability < 0.75 {
		t.Errorf("ScamProbability = %v, want >= 0.75", tok.ScamProbability)
	}

	holders, _ := tokens.GetHolders(ctx, "EQrug")
	if len(holders) != 2 {
		t.Errorf("Holders not persisted: %v", holders)
	}

	if len(notifier.scamAlerts) != 1 || notifier.scamAlerts[0] != "RUG" {
		t.Fatalf("Expected one RUG alert, got %v", notifier.scamAlerts)
	}

	// The token's chat channel entered the monitored set.
	ch, err := channels.GetByUsername(ctx, "rug_official")
	if err != nil {
		t.Fatalf("Social channel not registered: %v", err)
	}
	if ch.Source != domain.SourceTokenSocial {
		t.Errorf("Source = %s, want TOKEN_SOCIAL", ch.Source)
	}
}

func TestCycle_NoRepeatScamAlert(t *testing.T) {
	market := &fakeMarket{
		listings: []marketdata.TokenSummary{{Address: "EQrug", Ticker: "RUG"}},
		profiles: map[string]*domain.TokenProfile{"EQrug": scamProfile("EQrug")},
	}
	s, _, _, notifier := newTestScanner(t, market)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Cycle(ctx); err != nil {
			t.Fatalf("Cycle %d failed: %v", i, err)
		}
	}

	if len(notifier.scamAlerts) != 1 {
		t.Errorf("Scam alert fired %d times across re-scans, want once", len(notifier.scamAlerts))
	}
}

func TestCycle_CleanToken(t *testing.T) {
	market := &fakeMarket{
		listings: []marketdata.TokenSummary{{Address: "EQok", Ticker: "OK"}},
		profiles: map[string]*domain.TokenProfile{
			"EQok": {
				Address: "EQok",
				Ticker:  "OK",
				Holders: func() []domain.Holder {
					hs := make([]domain.Holder, 20)
					for i := range hs {
						hs[i] = domain.Holder{Address: string(rune('a' + i)), Percent: 5}
					}
					return hs
				}(),
				Liquidity: &domain.Liquidity{USD: 50000},
				Transactions: []domain.Transaction{
					{Hash: "1"}, {Hash: "2"}, {Hash: "3"}, {Hash: "4"}, {Hash: "5"},
				},
				Description: "A perfectly ordinary community project",
			},
		},
	}
	s, tokens, _, notifier := newTestScanner(t, market)
	ctx := context.Background()

	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	tok, err := tokens.GetByAddress(ctx, "EQok")
	if err != nil {
		t.Fatalf("Token not persisted: %v", err)
	}
	if tok.IsScam {
		t.Errorf("Clean token flagged: %+v", tok)
	}
	if len(notifier.scamAlerts) != 0 {
		t.Errorf("Unexpected alerts: %v", notifier.scamAlerts)
	}
}
