package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"cryptspider/internal/config"
	"cryptspider/internal/domain"
	"cryptspider/internal/extract"
	"cryptspider/internal/storage/memory"
	"cryptspider/internal/telegram"
)

type fakeChat struct {
	mu        sync.Mutex
	channels  map[string]*telegram.ChannelInfo
	messages  map[string][]telegram.Message // keyed by channel ID
	joined    map[string]bool
	needJoin  map[string]bool // channel IDs denying reads until joined
	search    map[string][]telegram.ChannelInfo
	searchErr map[string]error // popped on first use
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		channels:  make(map[string]*telegram.ChannelInfo),
		messages:  make(map[string][]telegram.Message),
		joined:    make(map[string]bool),
		needJoin:  make(map[string]bool),
		search:    make(map[string][]telegram.ChannelInfo),
		searchErr: make(map[string]error),
	}
}

func (f *fakeChat) addChannel(id, username string, msgs ...telegram.Message) {
	f.channels[username] = &telegram.ChannelInfo{ID: id, Username: username, Title: username}
	f.messages[id] = msgs
}

func (f *fakeChat) ResolveChannel(_ context.Context, username string) (*telegram.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.channels[username]
	if !ok {
		return nil, telegram.ErrNotFound
	}
	return info, nil
}

func (f *fakeChat) Messages(_ context.Context, channelID string, limit int) ([]telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.needJoin[channelID] && !f.joined[channelID] {
		return nil, telegram.ErrAccessDenied
	}
	msgs := f.messages[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeChat) SearchChannels(_ context.Context, query string, _ int) ([]telegram.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.searchErr[query]; ok {
		delete(f.searchErr, query)
		return nil, err
	}
	return f.search[query], nil
}

func (f *fakeChat) Join(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.channels[username]
	if !ok {
		return telegram.ErrNotFound
	}
	f.joined[info.ID] = true
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	channels []*domain.Channel
}

func (f *fakeNotifier) ScamAlert(context.Context, *domain.Token, domain.RiskAssessment, string) error {
	return nil
}

func (f *fakeNotifier) ChannelAlert(_ context.Context, ch *domain.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
	return nil
}

func (f *fakeNotifier) CandidateAlert(context.Context, *domain.CandidateToken) error {
	return nil
}

type fakeSink struct {
	mu       sync.Mutex
	mentions []string
}

func (f *fakeSink) RecordMention(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions = append(f.mentions, name)
	return nil
}

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		TokenKeywords:      []string{"jetton", "токен", "token", "airdrop", "TON"},
		SearchKeywords:     []string{"TON"},
		MaxChannels:        50,
		MaxChannelsPerRun:  5,
		SearchDelay:        time.Millisecond,
		SweepMessageLimit:  50,
		CrawlMessageLimit:  100,
		MinRelevance:       0.6,
		HighRelevanceAlert: 0.7,
		RetireRelevance:    0.3,
		RetireAfterDays:    30,
		WeightMentions:     0.4,
		WeightMembers:      0.2,
		WeightActivity:     0.15,
		WeightDescription:  0.15,
		WeightAge:          0.1,
	}
}

type engineFixture struct {
	engine   *Engine
	channels *memory.ChannelStore
	messages *memory.MessageStore
	chat     *fakeChat
	notifier *fakeNotifier
	sink     *fakeSink
	now      time.Time
}

func newFixture(t *testing.T, cfg config.DiscoveryConfig) *engineFixture {
	t.Helper()
	f := &engineFixture{
		channels: memory.NewChannelStore(),
		messages: memory.NewMessageStore(),
		chat:     newFakeChat(),
		notifier: &fakeNotifier{},
		sink:     &fakeSink{},
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	ex := extract.NewExtractor(cfg.TokenKeywords)
	f.engine = NewEngine(f.channels, f.messages, f.chat, ex, f.sink, f.notifier, cfg).
		WithClock(func() time.Time { return f.now })
	return f
}

func TestRegisterChannel(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	f.chat.addChannel("1001", "ton_news")

	ch, err := f.engine.RegisterChannel(ctx, "ton_news", domain.SourceSeed, "configured seed")
	if err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if ch == nil || ch.ChannelID != "1001" {
		t.Fatalf("Unexpected channel: %+v", ch)
	}
	if ch.RelevanceScore != InitialRelevance || !ch.IsActive {
		t.Errorf("Fresh channel should be active at initial relevance: %+v", ch)
	}

	// Registering again returns the stored record, no duplicate.
	again, err := f.engine.RegisterChannel(ctx, "ton_news", domain.SourceMessageLink, "other")
	if err != nil {
		t.Fatalf("Second RegisterChannel failed: %v", err)
	}
	if again.Source != domain.SourceSeed {
		t.Errorf("Existing channel must keep its original source, got %s", again.Source)
	}

	// Unresolvable usernames are skipped without error.
	ch, err = f.engine.RegisterChannel(ctx, "ghost", domain.SourceSeed, "")
	if err != nil || ch != nil {
		t.Errorf("Expected silent skip for unresolvable channel, got ch=%v err=%v", ch, err)
	}
}

func TestRegisterChannel_CapEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChannels = 1
	f := newFixture(t, cfg)
	ctx := context.Background()
	f.chat.addChannel("1", "first")
	f.chat.addChannel("2", "second")

	if _, err := f.engine.RegisterChannel(ctx, "first", domain.SourceSeed, ""); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	ch, err := f.engine.RegisterChannel(ctx, "second", domain.SourceSeed, "")
	if err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if ch != nil {
		t.Error("Expected registration skipped at channel cap")
	}
}

func TestRegisterChannel_RetiredDoNotCountAgainstCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChannels = 1
	f := newFixture(t, cfg)
	ctx := context.Background()

	if err := f.channels.Insert(ctx, &domain.Channel{
		ChannelID: "900", Username: "retired_junk", IsActive: false, AddedAt: f.now,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	f.chat.addChannel("1", "replacement")

	ch, err := f.engine.RegisterChannel(ctx, "replacement", domain.SourceSeed, "")
	if err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if ch == nil {
		t.Fatal("Retired channels must not count against the cap")
	}
	if !ch.IsActive {
		t.Errorf("New channel should be active: %+v", ch)
	}
}

func TestSweep_ScanExtractsAndRescores(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.chat.addChannel("1001", "launchpad",
		telegram.Message{ID: 3, Text: "запуск токена MOON завтра, детали в @moon_chat", Date: f.now},
		telegram.Message{ID: 2, Text: "обычное сообщение без упоминаний", Date: f.now},
		telegram.Message{ID: 1, Text: "airdrop GEM уже идёт: t.me/gem_community", Date: f.now},
	)
	f.chat.addChannel("2001", "moon_chat")
	f.chat.addChannel("2002", "gem_community")

	if _, err := f.engine.RegisterChannel(ctx, "launchpad", domain.SourceSeed, ""); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	ch, err := f.channels.GetByUsername(ctx, "launchpad")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if !ch.Scanned() {
		t.Error("Channel should be marked scanned")
	}
	if ch.MentionCount != 2 {
		t.Errorf("MentionCount = %d, want 2", ch.MentionCount)
	}

	// Mentions reached the sink.
	if len(f.sink.mentions) != 2 {
		t.Errorf("Sink mentions = %v, want MOON and GEM", f.sink.mentions)
	}

	// Mention-bearing messages were archived; the plain one was not.
	archived := f.messages.All()
	if len(archived) != 2 {
		t.Fatalf("Archived %d messages, want 2", len(archived))
	}
	for _, m := range archived {
		if !m.HasTokenMention || len(m.TokenNames) == 0 {
			t.Errorf("Archived message missing mention data: %+v", m)
		}
	}

	// Nested links joined the frontier but were not scanned this pass.
	for _, username := range []string{"moon_chat", "gem_community"} {
		nested, err := f.channels.GetByUsername(ctx, username)
		if err != nil {
			t.Fatalf("Nested channel @%s not registered: %v", username, err)
		}
		if nested.Scanned() {
			t.Errorf("Frontier channel @%s must not be scanned in the same pass", username)
		}
		if nested.Source != domain.SourceMessageLink {
			t.Errorf("Nested channel source = %s, want MESSAGE_LINK", nested.Source)
		}
	}
}

func TestSweep_JoinAfterProbeDenied(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.chat.addChannel("1001", "private_launch",
		telegram.Message{ID: 1, Text: "новый токен ZZZ", Date: f.now},
	)
	f.chat.needJoin["1001"] = true

	if _, err := f.engine.RegisterChannel(ctx, "private_launch", domain.SourceSeed, ""); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if !f.chat.joined["1001"] {
		t.Error("Engine should have joined after the probe was denied")
	}
	ch, _ := f.channels.GetByUsername(ctx, "private_launch")
	if ch.MentionCount != 1 {
		t.Errorf("Scan after join should have run: MentionCount = %d", ch.MentionCount)
	}
}

func TestSweep_MentionCountPerMessage(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.chat.addChannel("1001", "digest",
		telegram.Message{ID: 1, Text: "запуск токена MOON и airdrop GEM уже идёт", Date: f.now},
	)

	if _, err := f.engine.RegisterChannel(ctx, "digest", domain.SourceSeed, ""); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	// One mention-bearing message counts once, however many names it carries.
	ch, _ := f.channels.GetByUsername(ctx, "digest")
	if ch.MentionCount != 1 {
		t.Errorf("MentionCount = %d, want 1", ch.MentionCount)
	}
	// Every name still reaches the sink.
	if len(f.sink.mentions) != 2 {
		t.Errorf("Sink mentions = %v, want MOON and GEM", f.sink.mentions)
	}
}

func TestSweep_HighRelevanceAlert(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	// Many mentions and a keyword-dense description push relevance over 0.7.
	var msgs []telegram.Message
	for i := 0; i < 12; i++ {
		msgs = append(msgs, telegram.Message{ID: int64(i), Text: "запуск токена MOON", Date: f.now})
	}
	created := f.now.AddDate(0, 0, -90)
	f.chat.channels["hype"] = &telegram.ChannelInfo{
		ID: "1001", Username: "hype", Title: "Hype",
		Description: "jetton token TON airdrop блюм memepad",
		MemberCount: 20000,
		CreatedAt:   &created,
	}
	f.chat.messages["1001"] = msgs

	if _, err := f.engine.RegisterChannel(ctx, "hype", domain.SourceKeywordSearch, "keyword: TON"); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}
	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(f.notifier.channels) != 1 {
		t.Fatalf("Expected 1 channel alert, got %d", len(f.notifier.channels))
	}
	if f.notifier.channels[0].Username != "hype" {
		t.Errorf("Alert for wrong channel: %s", f.notifier.channels[0].Username)
	}

	// A repeat discovery pass must not re-alert: the channel is scanned now.
	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Second Discover failed: %v", err)
	}
	if len(f.notifier.channels) != 1 {
		t.Errorf("Channel alert fired twice")
	}
}

func TestDiscover_SkippedAtCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChannels = 1
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.chat.addChannel("1001", "only_one",
		telegram.Message{ID: 1, Text: "запуск токена MOON", Date: f.now},
	)
	if _, err := f.engine.RegisterChannel(ctx, "only_one", domain.SourceSeed, ""); err != nil {
		t.Fatalf("RegisterChannel failed: %v", err)
	}

	// At the cap the whole pass is skipped: no scan happens at all.
	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	ch, _ := f.channels.GetByUsername(ctx, "only_one")
	if ch.Scanned() {
		t.Error("Discovery at the cap must not scan anything")
	}
}

func TestSearchByKeywords_FloodWaitRetriesSameKeyword(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.chat.addChannel("3001", "ton_hub")
	f.chat.search["TON"] = []telegram.ChannelInfo{{ID: "3001", Username: "ton_hub"}}
	f.chat.searchErr["TON"] = &telegram.RateLimitError{RetryAfter: 10 * time.Millisecond}

	if err := f.engine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	// The keyword was retried after the wait and its result registered.
	if _, err := f.channels.GetByUsername(ctx, "ton_hub"); err != nil {
		t.Errorf("Expected ton_hub registered after flood retry: %v", err)
	}
}

func TestCrawlActive_RespectsMinRelevance(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	scanned := f.now.AddDate(0, 0, -1)
	relevant := &domain.Channel{
		ChannelID: "1", Username: "relevant", IsActive: true,
		RelevanceScore: 0.8, LastScannedAt: &scanned, AddedAt: f.now,
	}
	marginal := &domain.Channel{
		ChannelID: "2", Username: "marginal", IsActive: true,
		RelevanceScore: 0.4, LastScannedAt: &scanned, AddedAt: f.now,
	}
	for _, ch := range []*domain.Channel{relevant, marginal} {
		if err := f.channels.Insert(ctx, ch); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	f.chat.addChannel("1", "relevant",
		telegram.Message{ID: 1, Text: "airdrop GEM для подписчиков", Date: f.now},
	)
	f.chat.addChannel("2", "marginal",
		telegram.Message{ID: 1, Text: "airdrop ZZZ для подписчиков", Date: f.now},
	)

	if err := f.engine.CrawlActive(ctx); err != nil {
		t.Fatalf("CrawlActive failed: %v", err)
	}

	got, _ := f.channels.GetByUsername(ctx, "relevant")
	if got.MentionCount != 1 {
		t.Errorf("Relevant channel not crawled: %+v", got)
	}
	got, _ = f.channels.GetByUsername(ctx, "marginal")
	if got.MentionCount != 0 {
		t.Errorf("Below-minimum channel must not be crawled: %+v", got)
	}
}

func TestCleanup_RetiresStaleIrrelevant(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	old := f.now.AddDate(0, 0, -45)
	recent := f.now.AddDate(0, 0, -2)
	channels := []*domain.Channel{
		{ChannelID: "1", Username: "stale_junk", IsActive: true, RelevanceScore: 0.1, LastScannedAt: &old},
		{ChannelID: "2", Username: "fresh_junk", IsActive: true, RelevanceScore: 0.1, LastScannedAt: &recent},
		{ChannelID: "3", Username: "stale_good", IsActive: true, RelevanceScore: 0.9, LastScannedAt: &old},
	}
	for _, ch := range channels {
		if err := f.channels.Insert(ctx, ch); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := f.engine.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	retired, _ := f.channels.GetByUsername(ctx, "stale_junk")
	if retired.IsActive {
		t.Error("Stale irrelevant channel should be retired")
	}
	for _, username := range []string{"fresh_junk", "stale_good"} {
		kept, _ := f.channels.GetByUsername(ctx, username)
		if !kept.IsActive {
			t.Errorf("Channel @%s should stay active", username)
		}
	}
}

func TestScanTokenSocials(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	f.chat.addChannel("1001", "moon_official")
	f.chat.addChannel("1002", "hidden_chat")

	token := &domain.Token{Ticker: "MOON"}
	socials := []domain.SocialLink{
		{Type: "telegram", URL: "https://t.me/moon_official"},
		{Type: "website", URL: "https://moon.example", Description: "community: t.me/hidden_chat"},
	}

	if err := f.engine.ScanTokenSocials(ctx, token, socials); err != nil {
		t.Fatalf("ScanTokenSocials failed: %v", err)
	}

	direct, err := f.channels.GetByUsername(ctx, "moon_official")
	if err != nil {
		t.Fatalf("Direct social channel not registered: %v", err)
	}
	if direct.Source != domain.SourceTokenSocial {
		t.Errorf("Direct link source = %s, want TOKEN_SOCIAL", direct.Source)
	}

	hidden, err := f.channels.GetByUsername(ctx, "hidden_chat")
	if err != nil {
		t.Fatalf("Hidden link channel not registered: %v", err)
	}
	if hidden.Source != domain.SourceHiddenLink {
		t.Errorf("Hidden link source = %s, want HIDDEN_LINK", hidden.Source)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	for i, rel := range []float64{0.9, 0.8, 0.2} {
		ch := &domain.Channel{
			ChannelID: string(rune('1' + i)), Username: "chan_" + string(rune('a'+i)),
			IsActive: true, RelevanceScore: rel,
		}
		if err := f.channels.Insert(ctx, ch); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := f.channels.Insert(ctx, &domain.Channel{ChannelID: "9", Username: "dead", RelevanceScore: 1.0}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	stats, err := f.engine.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Active != 3 {
		t.Errorf("Totals: %+v", stats)
	}
	if stats.HighRelevance != 2 {
		t.Errorf("HighRelevance = %d, want 2", stats.HighRelevance)
	}
	if len(stats.Top) != 3 || stats.Top[0].RelevanceScore != 0.9 {
		t.Errorf("Top ordering wrong: %+v", stats.Top)
	}
}
