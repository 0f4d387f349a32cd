package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration, populated from environment variables.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	ClickHouse  ClickHouseConfig
	Telegram    TelegramConfig
	Marketplace MarketplaceConfig
	OpenAI      OpenAIConfig
	Scan        ScanConfig
	Risk        RiskConfig
	Discovery   DiscoveryConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"cryptspider"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"cryptspider"`
}

func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ClickHouseConfig) DSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type TelegramConfig struct {
	// Bot token for outbound notifications.
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Chat that receives scam alerts and discovery notifications.
	NotifyChatID int64 `envconfig:"TELEGRAM_NOTIFY_CHAT_ID" required:"true"`
	// User-session gateway used for channel history, search and joins.
	// The Bot API cannot read arbitrary channel history.
	GatewayURL     string        `envconfig:"TELEGRAM_GATEWAY_URL" required:"true"`
	GatewayTimeout time.Duration `envconfig:"TELEGRAM_GATEWAY_TIMEOUT" default:"30s"`
}

type MarketplaceConfig struct {
	BaseURL string        `envconfig:"MARKETPLACE_BASE_URL" default:"https://api.bidask.io/api/v1"`
	Timeout time.Duration `envconfig:"MARKETPLACE_TIMEOUT" default:"20s"`
	// Wallet whose asset balances expose per-token pool liquidity.
	ReferenceWallet string `envconfig:"MARKETPLACE_REFERENCE_WALLET" default:"EQDjal6NZlYefSz0qYbbKYL_5G7lzdixamDHcXv3sUP0OYMu"`
}

type OpenAIConfig struct {
	APIKey string `envconfig:"OPENAI_API_KEY"`
	Model  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

// Enabled reports whether report generation is configured.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

type ScanConfig struct {
	Interval      time.Duration `envconfig:"SCAN_INTERVAL" default:"600s"`
	ErrorCooldown time.Duration `envconfig:"SCAN_ERROR_COOLDOWN" default:"60s"`
	// Run the cleanup and stats passes every Nth cycle.
	CleanupEvery int `envconfig:"SCAN_CLEANUP_EVERY" default:"6"`
}

type RiskConfig struct {
	ScamThreshold float64 `envconfig:"RISK_SCAM_THRESHOLD" default:"0.75"`
	MinChannelAge int     `envconfig:"RISK_MIN_CHANNEL_AGE_DAYS" default:"14"`
	// Description red-flag patterns, ';'-separated regular expressions.
	ScamPatterns PatternList `envconfig:"RISK_SCAM_PATTERNS" default:"(?i)100x;(?i)1000x;guaranteed.{0,20}profit;без.{0,10}риска;without.{0,10}risk;(?i)pump.{0,5}dump;(?i)скам;(?i)scam.{0,5}alert"`
}

type DiscoveryConfig struct {
	SeedChannels []string `envconfig:"DISCOVERY_SEED_CHANNELS"`
	// Terms that gate token extraction and score channel descriptions.
	TokenKeywords []string `envconfig:"DISCOVERY_TOKEN_KEYWORDS" default:"jetton,токен,token,блюм,блум,blum,memepad,airdrop,дроп,эирдроп,TON,тон"`
	// Terms fed to platform-wide channel search.
	SearchKeywords []string `envconfig:"DISCOVERY_SEARCH_KEYWORDS" default:"TON,toncoin,ton crypto,ton blockchain,jetton,memepad,meme coin,блюм,блум,tonblum,ton diamond,tonx"`

	MaxChannels       int           `envconfig:"DISCOVERY_MAX_CHANNELS" default:"50"`
	MaxChannelsPerRun int           `envconfig:"DISCOVERY_MAX_CHANNELS_PER_RUN" default:"5"`
	SearchDelay       time.Duration `envconfig:"DISCOVERY_SEARCH_DELAY" default:"2s"`
	SweepMessageLimit int           `envconfig:"DISCOVERY_SWEEP_MESSAGE_LIMIT" default:"50"`
	CrawlMessageLimit int           `envconfig:"DISCOVERY_CRAWL_MESSAGE_LIMIT" default:"100"`

	MinRelevance       float64 `envconfig:"DISCOVERY_MIN_RELEVANCE" default:"0.6"`
	HighRelevanceAlert float64 `envconfig:"DISCOVERY_HIGH_RELEVANCE_ALERT" default:"0.7"`
	RetireRelevance    float64 `envconfig:"DISCOVERY_RETIRE_RELEVANCE" default:"0.3"`
	RetireAfterDays    int     `envconfig:"DISCOVERY_RETIRE_AFTER_DAYS" default:"30"`

	WeightMentions    float64 `envconfig:"RELEVANCE_WEIGHT_MENTIONS" default:"0.4"`
	WeightMembers     float64 `envconfig:"RELEVANCE_WEIGHT_MEMBERS" default:"0.2"`
	WeightActivity    float64 `envconfig:"RELEVANCE_WEIGHT_ACTIVITY" default:"0.15"`
	WeightDescription float64 `envconfig:"RELEVANCE_WEIGHT_DESCRIPTION" default:"0.15"`
	WeightAge         float64 `envconfig:"RELEVANCE_WEIGHT_AGE" default:"0.1"`
}

// PatternList holds regular expression sources. The env value is
// ';'-separated because pattern bodies routinely contain commas.
type PatternList []string

// Decode implements envconfig.Decoder.
func (p *PatternList) Decode(value string) error {
	var out []string
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	*p = out
	return nil
}

// Load reads configuration from environment variables.
// A .env file is loaded first if present, for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.Risk.ScamThreshold <= 0 || c.Risk.ScamThreshold > 1 {
		return fmt.Errorf("RISK_SCAM_THRESHOLD must be in (0, 1], got %v", c.Risk.ScamThreshold)
	}
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %v", c.Scan.Interval)
	}
	if c.Discovery.MaxChannelsPerRun <= 0 || c.Discovery.MaxChannels <= 0 {
		return fmt.Errorf("discovery channel limits must be positive")
	}

	d := c.Discovery
	sum := d.WeightMentions + d.WeightMembers + d.WeightActivity + d.WeightDescription + d.WeightAge
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("relevance weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}
