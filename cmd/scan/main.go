// Scan runs a single scan cycle and exits. Useful for local debugging
// and cron-style operation; with -use-memory no databases are required.
package main

import (
	"context"
	"flag"
	"time"

	"cryptspider/internal/config"
	"cryptspider/internal/discovery"
	"cryptspider/internal/extract"
	"cryptspider/internal/logger"
	"cryptspider/internal/marketdata"
	"cryptspider/internal/notify"
	"cryptspider/internal/report"
	"cryptspider/internal/risk"
	"cryptspider/internal/scanner"
	"cryptspider/internal/storage"
	chstore "cryptspider/internal/storage/clickhouse"
	"cryptspider/internal/storage/memory"
	"cryptspider/internal/storage/migrations"
	pgstore "cryptspider/internal/storage/postgres"
	"cryptspider/internal/telegram"
	"cryptspider/internal/tracker"
)

func main() {
	useMemory := flag.Bool("use-memory", false, "use in-memory storage instead of PostgreSQL and ClickHouse")
	timeout := flag.Duration("timeout", 15*time.Minute, "abort the cycle after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		logger.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, *useMemory); err != nil {
		logger.Fatalf("scan: %v", err)
	}
	logger.Info("cycle complete")
}

func run(ctx context.Context, cfg *config.Config, useMemory bool) error {
	var (
		tokens     storage.TokenStore
		channels   storage.ChannelStore
		candidates storage.CandidateStore
		messages   storage.MessageStore
	)

	if useMemory {
		tokens = memory.NewTokenStore()
		channels = memory.NewChannelStore()
		candidates = memory.NewCandidateStore()
		messages = memory.NewMessageStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}

		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN())
		if err != nil {
			return err
		}
		defer chConn.Close()

		tokens = pgstore.NewTokenStore(pool)
		channels = pgstore.NewChannelStore(pool)
		candidates = pgstore.NewCandidateStore(pool)
		messages = chstore.NewMessageStore(chConn)
	}

	market := marketdata.NewClient(cfg.Marketplace.BaseURL,
		marketdata.WithTimeout(cfg.Marketplace.Timeout),
		marketdata.WithReferenceWallet(cfg.Marketplace.ReferenceWallet),
	)
	chat := telegram.NewGatewayClient(cfg.Telegram.GatewayURL,
		telegram.WithGatewayTimeout(cfg.Telegram.GatewayTimeout),
	)
	notifier, err := notify.NewBotNotifier(cfg.Telegram.BotToken, cfg.Telegram.NotifyChatID)
	if err != nil {
		return err
	}

	analyzer, err := risk.NewAnalyzer(cfg.Risk.ScamPatterns,
		risk.WithThreshold(cfg.Risk.ScamThreshold),
		risk.WithMinChannelAge(time.Duration(cfg.Risk.MinChannelAge)*24*time.Hour),
	)
	if err != nil {
		return err
	}

	var reporter report.Generator = report.NoopGenerator{}
	if cfg.OpenAI.Enabled() {
		reporter = report.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	trk := tracker.NewTracker(candidates, tokens, market, notifier)
	extractor := extract.NewExtractor(cfg.Discovery.TokenKeywords)
	eng := discovery.NewEngine(channels, messages, chat, extractor, trk, notifier, cfg.Discovery)

	if err := eng.SeedChannels(ctx); err != nil {
		return err
	}

	s := scanner.New(scanner.Options{
		Tokens:        tokens,
		Market:        market,
		Analyzer:      analyzer,
		Reporter:      reporter,
		Notifier:      notifier,
		Discovery:     eng,
		Tracker:       trk,
		Interval:      cfg.Scan.Interval,
		ErrorCooldown: cfg.Scan.ErrorCooldown,
		CleanupEvery:  cfg.Scan.CleanupEvery,
	})

	return s.Cycle(ctx)
}
