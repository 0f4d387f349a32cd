// Package discovery grows and maintains the monitored channel set:
// seeding, keyword search, link crawling, relevance scoring and
// retirement.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"cryptspider/internal/config"
	"cryptspider/internal/domain"
	"cryptspider/internal/extract"
	"cryptspider/internal/logger"
	"cryptspider/internal/notify"
	"cryptspider/internal/storage"
	"cryptspider/internal/telegram"
)

const searchResultLimit = 10

// MentionSink receives token mentions extracted from channel messages.
type MentionSink interface {
	RecordMention(ctx context.Context, name, message string) error
}

// Engine drives channel discovery and crawling. Channels are checked out
// of the store, mutated, and committed after each scan; a failed channel
// aborts only its own unit of work.
type Engine struct {
	channels  storage.ChannelStore
	messages  storage.MessageStore
	chat      telegram.ChatClient
	extractor *extract.Extractor
	sink      MentionSink
	notifier  notify.Notifier
	cfg       config.DiscoveryConfig
	weights   Weights
	limiter   *rate.Limiter
	now       func() time.Time
	log       *logger.Logger
}

// NewEngine wires a discovery engine.
func NewEngine(
	channels storage.ChannelStore,
	messages storage.MessageStore,
	chat telegram.ChatClient,
	extractor *extract.Extractor,
	sink MentionSink,
	notifier notify.Notifier,
	cfg config.DiscoveryConfig,
) *Engine {
	return &Engine{
		channels:  channels,
		messages:  messages,
		chat:      chat,
		extractor: extractor,
		sink:      sink,
		notifier:  notifier,
		cfg:       cfg,
		weights: Weights{
			Mentions:    cfg.WeightMentions,
			Members:     cfg.WeightMembers,
			Activity:    cfg.WeightActivity,
			Description: cfg.WeightDescription,
			Age:         cfg.WeightAge,
		},
		limiter: rate.NewLimiter(rate.Every(cfg.SearchDelay), 1),
		now:     time.Now,
		log:     logger.Get().With("component", "discovery"),
	}
}

// WithClock overrides the time source. Used in tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RegisterChannel resolves a username and inserts it as an active channel
// with the initial relevance score. Registering a known channel returns
// the stored record. Unresolvable or access-denied usernames are skipped
// with a log line.
func (e *Engine) RegisterChannel(ctx context.Context, username string, source domain.ChannelSource, details string) (*domain.Channel, error) {
	if existing, err := e.channels.GetByUsername(ctx, username); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up channel %s: %w", username, err)
	}

	active, err := e.channels.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active channels: %w", err)
	}
	if active >= e.cfg.MaxChannels {
		e.log.Infof("active channel limit reached (%d/%d), not registering @%s", active, e.cfg.MaxChannels, username)
		return nil, nil
	}

	info, err := e.chat.ResolveChannel(ctx, username)
	if err != nil {
		if errors.Is(err, telegram.ErrNotFound) || errors.Is(err, telegram.ErrAccessDenied) {
			e.log.Infof("skipping unresolvable channel @%s: %v", username, err)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve channel %s: %w", username, err)
	}

	ch := &domain.Channel{
		ChannelID:      info.ID,
		Username:       info.Username,
		Title:          info.Title,
		Description:    info.Description,
		MemberCount:    info.MemberCount,
		CreatedAt:      info.CreatedAt,
		AddedAt:        e.now(),
		IsActive:       true,
		RelevanceScore: InitialRelevance,
		Source:         source,
		SourceDetails:  details,
	}
	if ch.Username == "" {
		ch.Username = username
	}

	if err := e.channels.Insert(ctx, ch); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return e.channels.GetByID(ctx, info.ID)
		}
		return nil, fmt.Errorf("insert channel %s: %w", username, err)
	}

	e.log.Infof("registered channel @%s (source=%s)", ch.Username, source)
	return ch, nil
}

// SeedChannels registers the configured seed list. Called once at startup.
func (e *Engine) SeedChannels(ctx context.Context) error {
	for _, username := range e.cfg.SeedChannels {
		if _, err := e.RegisterChannel(ctx, username, domain.SourceSeed, "configured seed"); err != nil {
			return err
		}
	}
	return nil
}

// Discover runs one discovery pass: keyword search for new channels, then
// a sweep over never-scanned channels. The whole pass is skipped when the
// active set has reached its cap.
func (e *Engine) Discover(ctx context.Context) error {
	active, err := e.channels.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count active channels: %w", err)
	}
	if active >= e.cfg.MaxChannels {
		e.log.Infof("active channel cap reached (%d/%d), skipping discovery", active, e.cfg.MaxChannels)
		return nil
	}

	if err := e.searchByKeywords(ctx); err != nil {
		return err
	}
	return e.sweepUnscanned(ctx)
}

// searchByKeywords queries platform-wide search once per keyword, paced
// by the rate limiter. A rate-limit signal sleeps the provider-given
// duration and retries the same keyword.
func (e *Engine) searchByKeywords(ctx context.Context) error {
	for _, keyword := range e.cfg.SearchKeywords {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		var results []telegram.ChannelInfo
		for {
			var err error
			results, err = e.chat.SearchChannels(ctx, keyword, searchResultLimit)
			if err == nil {
				break
			}
			var rle *telegram.RateLimitError
			if errors.As(err, &rle) {
				e.log.Warnf("search rate limited, sleeping %s before retrying %q", rle.RetryAfter, keyword)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(rle.RetryAfter):
					continue
				}
			}
			e.log.Warnf("search for %q failed: %v", keyword, err)
			results = nil
			break
		}

		for _, info := range results {
			if info.Username == "" {
				continue
			}
			if _, err := e.RegisterChannel(ctx, info.Username, domain.SourceKeywordSearch, "keyword: "+keyword); err != nil {
				e.log.Warnf("failed to register @%s: %v", info.Username, err)
			}
		}
	}
	return nil
}

// sweepUnscanned scans up to MaxChannelsPerRun never-scanned channels.
func (e *Engine) sweepUnscanned(ctx context.Context) error {
	pending, err := e.channels.ListUnscanned(ctx, e.cfg.MaxChannelsPerRun)
	if err != nil {
		return fmt.Errorf("list unscanned channels: %w", err)
	}

	for _, ch := range pending {
		wasUnscanned := !ch.Scanned()
		if err := e.scanChannel(ctx, ch, e.cfg.SweepMessageLimit); err != nil {
			e.log.Warnf("scan of @%s failed: %v", ch.Username, err)
			continue
		}
		if wasUnscanned && ch.RelevanceScore >= e.cfg.HighRelevanceAlert {
			if err := e.notifier.ChannelAlert(ctx, ch); err != nil {
				e.log.Warnf("channel alert for @%s failed: %v", ch.Username, err)
			}
		}
	}
	return nil
}

// CrawlActive rescans the established crawl set: active channels at or
// above the minimum relevance. The set is snapshotted up front, so
// channels registered during the crawl wait for the next pass.
func (e *Engine) CrawlActive(ctx context.Context) error {
	active, err := e.channels.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active channels: %w", err)
	}

	for _, ch := range active {
		if !ch.Scanned() || ch.RelevanceScore < e.cfg.MinRelevance {
			continue
		}
		if err := e.scanChannel(ctx, ch, e.cfg.CrawlMessageLimit); err != nil {
			e.log.Warnf("crawl of @%s failed: %v", ch.Username, err)
		}
	}
	return nil
}

// scanChannel joins a channel if needed, reads a bounded message window,
// extracts mentions and nested links, archives mention-bearing messages,
// rescores the channel and commits it.
func (e *Engine) scanChannel(ctx context.Context, ch *domain.Channel, messageLimit int) error {
	msgs, err := e.chat.Messages(ctx, ch.ChannelID, messageLimit)
	if errors.Is(err, telegram.ErrAccessDenied) {
		// Probe failed: not a member yet.
		if err := e.chat.Join(ctx, ch.Username); err != nil {
			return fmt.Errorf("join @%s: %w", ch.Username, err)
		}
		msgs, err = e.chat.Messages(ctx, ch.ChannelID, messageLimit)
	}
	if err != nil {
		return fmt.Errorf("fetch messages from @%s: %w", ch.Username, err)
	}

	var archive []*domain.ChatMessage
	linkSet := make(map[string]struct{})
	for _, msg := range msgs {
		names := e.extractor.TokenMentions(msg.Text)
		if len(names) > 0 {
			ch.MentionCount++
			archive = append(archive, &domain.ChatMessage{
				MessageID:       msg.ID,
				ChatID:          ch.ChannelID,
				ChatTitle:       ch.Title,
				SenderID:        msg.SenderID,
				Text:            msg.Text,
				Timestamp:       msg.Date,
				HasTokenMention: true,
				TokenNames:      names,
			})
			for _, name := range names {
				if err := e.sink.RecordMention(ctx, name, msg.Text); err != nil {
					e.log.Warnf("record mention %q: %v", name, err)
				}
			}
		}
		for _, link := range e.extractor.ChannelLinks(msg.Text) {
			linkSet[link] = struct{}{}
		}
	}

	if len(archive) > 0 {
		if err := e.messages.InsertBulk(ctx, archive); err != nil {
			e.log.Warnf("archive messages from @%s: %v", ch.Username, err)
		}
	}

	// Nested links extend the crawl frontier but are not crawled within
	// this pass.
	for link := range linkSet {
		if link == ch.Username {
			continue
		}
		if _, err := e.RegisterChannel(ctx, link, domain.SourceMessageLink, "found in @"+ch.Username); err != nil {
			e.log.Warnf("failed to register @%s: %v", link, err)
		}
	}

	now := e.now()
	ch.LastScannedAt = &now
	ch.RelevanceScore = Score(ch, e.extractor.KeywordHits(ch.Description), e.weights, now)

	if err := e.channels.Update(ctx, ch); err != nil {
		return fmt.Errorf("commit channel @%s: %w", ch.Username, err)
	}
	e.log.Debugf("scanned @%s: %d messages, relevance %.2f", ch.Username, len(msgs), ch.RelevanceScore)
	return nil
}

// ScanTokenSocials registers channels referenced by a token's social
// links: direct chat links and t.me links hidden inside other URLs.
func (e *Engine) ScanTokenSocials(ctx context.Context, token *domain.Token, socials []domain.SocialLink) error {
	for _, link := range socials {
		text := link.URL + " " + link.Description
		names := e.extractor.ChannelLinks(text)

		source := domain.SourceHiddenLink
		if link.Type == "telegram" {
			source = domain.SourceTokenSocial
		}
		for _, name := range names {
			if _, err := e.RegisterChannel(ctx, name, source, "token: "+token.Ticker); err != nil {
				e.log.Warnf("failed to register @%s from token %s: %v", name, token.Ticker, err)
			}
		}
	}
	return nil
}

// Cleanup retires active channels whose relevance stayed below the
// retirement threshold and whose last scan is older than the configured
// horizon. Retirement only clears the active flag; history is kept.
func (e *Engine) Cleanup(ctx context.Context) error {
	cutoff := e.now().AddDate(0, 0, -e.cfg.RetireAfterDays)
	stale, err := e.channels.ListRetirable(ctx, e.cfg.RetireRelevance, cutoff)
	if err != nil {
		return fmt.Errorf("list retirable channels: %w", err)
	}

	for _, ch := range stale {
		ch.IsActive = false
		if err := e.channels.Update(ctx, ch); err != nil {
			e.log.Warnf("retire @%s: %v", ch.Username, err)
			continue
		}
		e.log.Infof("retired channel @%s (relevance %.2f)", ch.Username, ch.RelevanceScore)
	}
	return nil
}

// Stats summarizes the monitored set for operators.
type Stats struct {
	Total         int
	Active        int
	HighRelevance int
	Top           []*domain.Channel
}

// Stats reports totals and the five most relevant active channels.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	total, err := e.channels.Count(ctx)
	if err != nil {
		return nil, err
	}
	active, err := e.channels.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	s := &Stats{Total: total, Active: len(active)}
	for _, ch := range active {
		if ch.RelevanceScore >= e.cfg.HighRelevanceAlert {
			s.HighRelevance++
		}
	}
	top := len(active)
	if top > 5 {
		top = 5
	}
	s.Top = active[:top]
	return s, nil
}
