package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/Proton-105/ledger-bot/pkg/redis"
)

// Config holds runtime configuration for the expense ledger bot.
type Config struct {
	AppEnv       string             `mapstructure:"app_env"`
	Bot          BotConfig          `mapstructure:"bot"`
	Server       ServerConfig       `mapstructure:"server"`
	Ledger       LedgerConfig       `mapstructure:"ledger"`
	State        StateConfig        `mapstructure:"state"`
	Redis        redis.Config       `mapstructure:"redis"`
	Consul       ConsulConfig       `mapstructure:"consul"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Idempotency  IdempotencyConfig  `mapstructure:"idempotency"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	I18n         I18nConfig         `mapstructure:"i18n"`
}

// BotConfig configures the Telegram side of the bot.
type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	Mode        string        `mapstructure:"mode" validate:"oneof=webhook longpoll"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	WebhookURL  string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookPath string        `mapstructure:"webhook_path" validate:"startswith=/"`
	// WebhookSecret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string `mapstructure:"webhook_secret"`
	APIURL        string `mapstructure:"api_url" validate:"omitempty,url"`
	Language      string `mapstructure:"language"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// LedgerConfig points at the spreadsheet web app that stores entries.
type LedgerConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// CircuitBreaker fails ledger calls fast while the backend keeps erroring.
	CircuitBreaker bool `mapstructure:"circuit_breaker"`
}

// StateConfig selects the conversation state backend.
type StateConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=redis consul postgres sqlite memory"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
}

type ConsulConfig struct {
	Address    string `mapstructure:"address"`
	Datacenter string `mapstructure:"datacenter"`
	Token      string `mapstructure:"token"`
	Prefix     string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ConversationConfig tunes the conversation flow.
type ConversationConfig struct {
	// Transitions is "permissive" (status choice accepted from any step) or "strict".
	Transitions string `mapstructure:"transitions" validate:"oneof=permissive strict"`
	Timezone    string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, defaulting to UTC.
func (c ConversationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// OutboxConfig enables background retries of failed ledger submissions.
type OutboxConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxRetry    int  `mapstructure:"max_retry" validate:"min=0"`
	Concurrency int  `mapstructure:"concurrency" validate:"min=0"`
}

type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotated file output next to stdout.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	// Dir overrides the embedded catalogs with YAML files on disk.
	Dir string `mapstructure:"dir"`
}
