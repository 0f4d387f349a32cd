// Spider is the long-running scan daemon: it sweeps the marketplace,
// scores tokens, crawls and discovers chat channels, and pushes alerts.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
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
	chstore "cryptspider/internal/storage/clickhouse"
	"cryptspider/internal/storage/migrations"
	pgstore "cryptspider/internal/storage/postgres"
	"cryptspider/internal/telegram"
	"cryptspider/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		logger.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("spider: %v", err)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Storage
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

	tokens := pgstore.NewTokenStore(pool)
	channels := pgstore.NewChannelStore(pool)
	candidates := pgstore.NewCandidateStore(pool)
	messages := chstore.NewMessageStore(chConn)

	// Outbound clients
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

	// Engines
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
	} else {
		logger.Warn("OPENAI_API_KEY not set, scam alerts will carry fallback reports")
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

	logger.Infof("%s started (env %s)", cfg.App.Name, cfg.App.Env)
	return s.Run(ctx)
}
