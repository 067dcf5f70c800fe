package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration. Every threshold the pipeline
// consults lives here; the core never hardcodes them.
type Config struct {
	IsProd bool `envconfig:"IS_PROD" default:"false"`

	// DryRun evaluates alerts without dispatching them. Dedup keys are not
	// marked in dry runs, so a later real run still delivers.
	DryRun bool `envconfig:"DRY_RUN" default:"false"`

	// DataDir is the root of the tabular data tree (raw/ and processed/).
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	// CollectOnRun refreshes raw transfers and live prices before processing.
	CollectOnRun bool `envconfig:"COLLECT_ON_RUN" default:"false"`

	Pipeline   PipelineConfig
	Alerts     AlertsConfig
	Patterns   PatternsConfig
	Categories CategoriesConfig
	Telegram   TelegramConfig
	Discord    DiscordConfig
	Blockchain BlockchainConfig
	CoinGecko  CoinGeckoConfig
}

// PipelineConfig controls the batch run itself.
type PipelineConfig struct {
	Workers       int `envconfig:"WORKER_COUNT" default:"4"`
	LookbackHours int `envconfig:"ALERT_LOOKBACK_HOURS" default:"24"`
}

// AlertsConfig holds the portfolio-impact thresholds, in percent.
type AlertsConfig struct {
	UrgentPct float64 `envconfig:"ALERT_URGENT_PCT" default:"10"`
	HighPct   float64 `envconfig:"ALERT_HIGH_PCT" default:"5"`
	InfoPct   float64 `envconfig:"ALERT_INFO_PCT" default:"0.2"`
}

// PatternsConfig holds the behavioral pattern thresholds.
type PatternsConfig struct {
	SignificantSellPct         float64 `envconfig:"SIGNIFICANT_SELL_PCT" default:"0.01"`
	ActiveTraderTradesPerMonth float64 `envconfig:"ACTIVE_TRADER_TRADES_PER_MONTH" default:"10"`
	HoldingGapDays             int     `envconfig:"HOLDING_GAP_DAYS" default:"30"`
	DistributionMinSells       int     `envconfig:"DISTRIBUTION_MIN_SELLS" default:"3"`
}

// CategoriesConfig holds the wallet age boundaries, in days. Boundaries are
// closed-open: a wallet exactly NewMaxAgeDays old is RECENT.
type CategoriesConfig struct {
	NewMaxAgeDays    int `envconfig:"CATEGORY_NEW_MAX_AGE_DAYS" default:"30"`
	RecentMaxAgeDays int `envconfig:"CATEGORY_RECENT_MAX_AGE_DAYS" default:"180"`
}

// TelegramConfig holds Telegram dispatch configuration.
type TelegramConfig struct {
	BotToken   string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ProdChatID int64  `envconfig:"TELEGRAM_PROD_CHAT_ID"`
	BetaChatID int64  `envconfig:"TELEGRAM_BETA_CHAT_ID"`
}

// DiscordConfig holds Discord dispatch configuration.
type DiscordConfig struct {
	BotToken      string `envconfig:"DISCORD_BOT_TOKEN"`
	ProdChannelID string `envconfig:"DISCORD_PROD_CHANNEL_ID"`
	BetaChannelID string `envconfig:"DISCORD_BETA_CHANNEL_ID"`
}

// BlockchainConfig holds the blockchain.info collector configuration.
type BlockchainConfig struct {
	APIURL string `envconfig:"BLOCKCHAIN_API_URL" default:"https://blockchain.info"`

	// RequestInterval is the minimum spacing between API calls, the
	// backpressure contract with the data provider.
	RequestInterval time.Duration `envconfig:"BLOCKCHAIN_REQUEST_INTERVAL" default:"800ms"`
	PageLimit       int           `envconfig:"BLOCKCHAIN_PAGE_LIMIT" default:"50"`
	MaxRetries      int           `envconfig:"BLOCKCHAIN_MAX_RETRIES" default:"3"`
}

// CoinGeckoConfig holds the price collector configuration.
type CoinGeckoConfig struct {
	APIURL          string        `envconfig:"COINGECKO_API_URL" default:"https://api.coingecko.com"`
	RequestInterval time.Duration `envconfig:"COINGECKO_REQUEST_INTERVAL" default:"1s"`
}

// Load reads .env (when present) and the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.LookbackHours < 1 {
		return fmt.Errorf("ALERT_LOOKBACK_HOURS must be at least 1, got %d", c.Pipeline.LookbackHours)
	}

	if c.Alerts.UrgentPct <= 0 || c.Alerts.HighPct <= 0 || c.Alerts.InfoPct <= 0 {
		return fmt.Errorf("alert thresholds must be positive")
	}
	if !(c.Alerts.UrgentPct > c.Alerts.HighPct && c.Alerts.HighPct > c.Alerts.InfoPct) {
		return fmt.Errorf("alert thresholds must be strictly descending: urgent %.3f, high %.3f, info %.3f",
			c.Alerts.UrgentPct, c.Alerts.HighPct, c.Alerts.InfoPct)
	}

	if c.Patterns.SignificantSellPct <= 0 || c.Patterns.SignificantSellPct >= 1 {
		return fmt.Errorf("SIGNIFICANT_SELL_PCT must be in (0, 1), got %f", c.Patterns.SignificantSellPct)
	}
	if c.Patterns.ActiveTraderTradesPerMonth <= 0 {
		return fmt.Errorf("ACTIVE_TRADER_TRADES_PER_MONTH must be positive")
	}
	if c.Patterns.HoldingGapDays < 1 {
		return fmt.Errorf("HOLDING_GAP_DAYS must be at least 1")
	}
	if c.Patterns.DistributionMinSells < 1 {
		return fmt.Errorf("DISTRIBUTION_MIN_SELLS must be at least 1")
	}

	if c.Categories.NewMaxAgeDays < 1 {
		return fmt.Errorf("CATEGORY_NEW_MAX_AGE_DAYS must be at least 1")
	}
	if c.Categories.RecentMaxAgeDays <= c.Categories.NewMaxAgeDays {
		return fmt.Errorf("CATEGORY_RECENT_MAX_AGE_DAYS (%d) must exceed CATEGORY_NEW_MAX_AGE_DAYS (%d)",
			c.Categories.RecentMaxAgeDays, c.Categories.NewMaxAgeDays)
	}

	if c.Blockchain.RequestInterval <= 0 {
		return fmt.Errorf("BLOCKCHAIN_REQUEST_INTERVAL must be positive")
	}
	if c.Blockchain.PageLimit < 1 || c.Blockchain.PageLimit > 50 {
		return fmt.Errorf("BLOCKCHAIN_PAGE_LIMIT must be in [1, 50], got %d", c.Blockchain.PageLimit)
	}
	if c.Blockchain.MaxRetries < 0 {
		return fmt.Errorf("BLOCKCHAIN_MAX_RETRIES must not be negative")
	}

	return nil
}

// TelegramChatID returns the chat for the current environment.
func (c *Config) TelegramChatID() int64 {
	if c.IsProd {
		return c.Telegram.ProdChatID
	}
	return c.Telegram.BetaChatID
}

// DiscordChannelID returns the channel for the current environment.
func (c *Config) DiscordChannelID() string {
	if c.IsProd {
		return c.Discord.ProdChannelID
	}
	return c.Discord.BetaChannelID
}
