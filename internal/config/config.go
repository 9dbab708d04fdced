// Package config loads application configuration from file and
// environment and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Mail       MailConfig       `yaml:"mail" mapstructure:"mail"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Webhook    WebhookConfig    `yaml:"webhook" mapstructure:"webhook"`
	Poll       PollConfig       `yaml:"poll" mapstructure:"poll"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// MailConfig configures SMTP sending and IMAP polling.
type MailConfig struct {
	SMTPHost     string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	IMAPAddr     string `yaml:"imap_addr" mapstructure:"imap_addr"`
	IMAPMailbox  string `yaml:"imap_mailbox" mapstructure:"imap_mailbox"`
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"`
	FromAddress  string `yaml:"from_address" mapstructure:"from_address"`
	FromName     string `yaml:"from_name" mapstructure:"from_name"`
	ThreadDomain string `yaml:"thread_domain" mapstructure:"thread_domain"`
}

// AnthropicConfig holds Anthropic API settings for draft generation.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RedisConfig configures the optional shared idempotency store.
// An empty Addr keeps dedup in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ScoringConfig carries the budget thresholds for form scoring.
type ScoringConfig struct {
	PremiumBudgetThreshold int64 `yaml:"premium_budget_threshold" mapstructure:"premium_budget_threshold"`
	MidTierBudgetThreshold int64 `yaml:"mid_tier_budget_threshold" mapstructure:"mid_tier_budget_threshold"`
	EntryBudgetThreshold   int64 `yaml:"entry_budget_threshold" mapstructure:"entry_budget_threshold"`
}

// WebhookConfig configures intake-side protection.
type WebhookConfig struct {
	RatePerMinute       int `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	RateBurst           int `yaml:"rate_burst" mapstructure:"rate_burst"`
	IdempotencyTTLHours int `yaml:"idempotency_ttl_hours" mapstructure:"idempotency_ttl_hours"`
}

// PollConfig configures the background poll loop.
type PollConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// MonitoringConfig configures the SLA checker.
type MonitoringConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	IntervalSecs      int    `yaml:"interval_secs" mapstructure:"interval_secs"`
	AlertWebhookURL   string `yaml:"alert_webhook_url" mapstructure:"alert_webhook_url"`
	SLARiskThreshold  int    `yaml:"sla_risk_threshold" mapstructure:"sla_risk_threshold"`
	CriticalThreshold int    `yaml:"critical_threshold" mapstructure:"critical_threshold"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "leadflow.db")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.imap_mailbox", "INBOX")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("scoring.premium_budget_threshold", 100_000_000)
	v.SetDefault("webhook.rate_per_minute", 60)
	v.SetDefault("webhook.rate_burst", 10)
	v.SetDefault("webhook.idempotency_ttl_hours", 24)
	v.SetDefault("poll.interval_secs", 300)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.interval_secs", 900)
	v.SetDefault("monitoring.sla_risk_threshold", 5)
	v.SetDefault("monitoring.critical_threshold", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs before it starts.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "memory":
		default:
			problems = append(problems, "store.driver must be sqlite, postgres, or memory")
		}
	}
	requireMail := func() {
		if c.Mail.SMTPHost == "" {
			problems = append(problems, "mail.smtp_host is required")
		}
		if c.Mail.FromAddress == "" {
			problems = append(problems, "mail.from_address is required")
		}
	}
	requireScoring := func() {
		if c.Scoring.PremiumBudgetThreshold <= 0 {
			problems = append(problems, "scoring.premium_budget_threshold must be > 0")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		requireMail()
		requireScoring()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Mail.IMAPAddr == "" {
			problems = append(problems, "mail.imap_addr is required")
		}
	case "webhook":
		requireStore()
		requireMail()
		requireScoring()
	case "poll":
		requireStore()
		if c.Mail.IMAPAddr == "" {
			problems = append(problems, "mail.imap_addr is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "send":
		requireStore()
		requireMail()
	case "migrate", "insights":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
