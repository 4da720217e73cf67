package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Backend kinds selectable in BackendConfig.Kind.
const (
	BackendHTTP  = "http"
	BackendMock  = "mock"
	BackendRedis = "redis"
	BackendIMAP  = "imap"
)

// BackendConfig selects and configures the notification backend.
type BackendConfig struct {
	// Kind is one of the Backend* constants.
	Kind string `mapstructure:"kind" yaml:"kind"`

	// BaseURL is the REST API root (e.g. http://localhost:8080/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// PageLimit is the page size requested on each tick.
	PageLimit int `mapstructure:"page_limit" yaml:"page_limit"`

	// HistoryLimit is the size of the secondary history page.
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`

	// RatePerSec caps outgoing REST requests.
	RatePerSec int `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`

	// BreakerFailures is the consecutive failure count that opens the
	// circuit breaker.
	BreakerFailures int `mapstructure:"breaker_failures" yaml:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// RedisConfig configures the redis-backed feed.
type RedisConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// IMAPConfig configures the mailbox-backed feed. The password lives in
// the keyring under "imap-<username>".
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
}

// PollConfig holds the sync engine cadence.
type PollConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	IncludeHistory bool          `mapstructure:"include_history" yaml:"include_history"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// PopupConfig holds the pop-up queue settings.
type PopupConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	DisplayFor time.Duration `mapstructure:"display_for" yaml:"display_for"`
	Settle     time.Duration `mapstructure:"settle" yaml:"settle"`
}

// ReadConfig holds read-state reconciliation settings.
type ReadConfig struct {
	// Grace is how long a locally confirmed read survives a fresher
	// fetch that still reports the item unread. Zero disables it.
	Grace time.Duration `mapstructure:"grace" yaml:"grace"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	SubscriberID string        `mapstructure:"subscriber_id" yaml:"subscriber_id"`
	Backend      BackendConfig `mapstructure:"backend" yaml:"backend"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis"`
	IMAP         IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Poll         PollConfig    `mapstructure:"poll" yaml:"poll"`
	Popup        PopupConfig   `mapstructure:"popup" yaml:"popup"`
	Read         ReadConfig    `mapstructure:"read" yaml:"read"`
	Log          LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "notifsync", "config.yaml")
}

// defaultLogPath keeps the TUI screen free of log output.
func defaultLogPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "notifsync.log")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		SubscriberID: "usuario123",
		Backend: BackendConfig{
			Kind:            BackendHTTP,
			BaseURL:         "http://localhost:8080/api",
			PageLimit:       50,
			HistoryLimit:    50,
			RatePerSec:      5,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379/0"},
		IMAP:  IMAPConfig{Port: "993", TLS: true, Mailbox: "INBOX"},
		Poll: PollConfig{
			Interval:       3 * time.Second,
			IncludeHistory: true,
			FetchTimeout:   30 * time.Second,
		},
		Popup: PopupConfig{
			Enabled:    false,
			DisplayFor: 4 * time.Second,
			Settle:     100 * time.Millisecond,
		},
		Read: ReadConfig{Grace: 30 * time.Second},
		Log:  LogConfig{Level: "info", File: defaultLogPath()},
	}
}

// setDefaults mirrors DefaultAppConfig so missing keys resolve to the
// same values whether or not a file exists.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("subscriber_id", d.SubscriberID)
	v.SetDefault("backend.kind", d.Backend.Kind)
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.page_limit", d.Backend.PageLimit)
	v.SetDefault("backend.history_limit", d.Backend.HistoryLimit)
	v.SetDefault("backend.rate_per_sec", d.Backend.RatePerSec)
	v.SetDefault("backend.breaker_failures", d.Backend.BreakerFailures)
	v.SetDefault("backend.breaker_cooldown", d.Backend.BreakerCooldown)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("imap.port", d.IMAP.Port)
	v.SetDefault("imap.tls", d.IMAP.TLS)
	v.SetDefault("imap.mailbox", d.IMAP.Mailbox)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.include_history", d.Poll.IncludeHistory)
	v.SetDefault("poll.fetch_timeout", d.Poll.FetchTimeout)
	v.SetDefault("popup.enabled", d.Popup.Enabled)
	v.SetDefault("popup.display_for", d.Popup.DisplayFor)
	v.SetDefault("popup.settle", d.Popup.Settle)
	v.SetDefault("read.grace", d.Read.Grace)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// bindEnv wires the environment-level toggles. They select behavior at
// construction time only.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("backend.base_url", "NOTIF_API_URL")
	_ = v.BindEnv("subscriber_id", "NOTIF_SUBSCRIBER_ID")
	_ = v.BindEnv("log.level", "NOTIF_LOG_LEVEL")
	_ = v.BindEnv("env.poll_interval_ms", "NOTIF_POLL_INTERVAL_MS")
	_ = v.BindEnv("env.mock", "NOTIF_MOCK")
	_ = v.BindEnv("env.popups", "NOTIF_ENABLE_POPUPS")
}

// applyEnvToggles folds the environment toggles into cfg.
func applyEnvToggles(v *viper.Viper, cfg *AppConfig) {
	if ms := v.GetInt("env.poll_interval_ms"); ms > 0 {
		cfg.Poll.Interval = time.Duration(ms) * time.Millisecond
	}
	if v.IsSet("env.mock") && v.GetBool("env.mock") {
		cfg.Backend.Kind = BackendMock
	}
	if v.IsSet("env.popups") {
		cfg.Popup.Enabled = v.GetBool("env.popups")
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration with
// environment toggles applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyEnvToggles(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings the engine cannot run without.
func (c *AppConfig) Validate() error {
	if c.SubscriberID == "" {
		return fmt.Errorf("subscriber_id is required")
	}
	switch c.Backend.Kind {
	case BackendHTTP:
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required for the http backend")
		}
	case BackendMock:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	case BackendIMAP:
		if c.IMAP.Host == "" || c.IMAP.Username == "" {
			return fmt.Errorf("imap.host and imap.username are required for the imap backend")
		}
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("subscriber_id", cfg.SubscriberID)
	v.Set("backend", cfg.Backend)
	v.Set("redis", cfg.Redis)
	v.Set("imap", cfg.IMAP)
	v.Set("poll", cfg.Poll)
	v.Set("popup", cfg.Popup)
	v.Set("read", cfg.Read)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
