// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultJWTExpiresIn   = "24h"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "snapfetch"
	DefaultPGSSLMode      = "disable"
	DefaultCobaltURL      = "http://127.0.0.1:9000"
	DefaultStagingDir     = "data/staging"
	DefaultFetchTimeout   = 180
	DefaultPayPalBaseURL  = "https://api-m.sandbox.paypal.com"
	DefaultBotRatePerMin  = 6
	DefaultPublicBaseURL  = "http://127.0.0.1:8080"
	DefaultUsageRetention = 90
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Telegram TelegramConfig `toml:"telegram"`
	Postgres PostgresConfig `toml:"postgres"`
	Media    MediaConfig    `toml:"media"`
	Cobalt   CobaltConfig   `toml:"cobalt"`
	PayPal   PayPalConfig   `toml:"paypal"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address and the externally
// reachable base URL used in payment return links.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	PublicBaseURL string `toml:"public_base_url"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// TelegramConfig holds the bot token and per-user rate limit.
type TelegramConfig struct {
	Token          string `toml:"token"`
	RatePerMinute  int    `toml:"rate_per_minute"`
	UpdateTimeout  int    `toml:"update_timeout"`
	AdminChatID    int64  `toml:"admin_chat_id"`
	DisableWebPage bool   `toml:"disable_web_page_preview"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// MediaConfig holds the staging directory and fetch timeouts.
type MediaConfig struct {
	StagingDir          string `toml:"staging_dir"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	UsageRetentionDays  int    `toml:"usage_retention_days"`
}

// FetchTimeout returns the overall per-fetch budget.
func (c MediaConfig) FetchTimeout() time.Duration {
	secs := c.FetchTimeoutSeconds
	if secs <= 0 {
		secs = DefaultFetchTimeout
	}
	return time.Duration(secs) * time.Second
}

// CobaltConfig holds the cobalt instance URL and API key.
type CobaltConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PayPalConfig holds the PayPal REST credentials. Mode selects the
// sandbox or live endpoint when base_url is not set explicitly.
type PayPalConfig struct {
	ClientID string `toml:"client_id"`
	Secret   string `toml:"secret"`
	Mode     string `toml:"mode"`
	BaseURL  string `toml:"base_url"`
}

// APIBaseURL resolves the effective PayPal endpoint.
func (c PayPalConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Mode == "live" {
		return "https://api-m.paypal.com"
	}
	return DefaultPayPalBaseURL
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:          DefaultHTTPAddr,
			PublicBaseURL: DefaultPublicBaseURL,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Telegram: TelegramConfig{
			RatePerMinute: DefaultBotRatePerMin,
			UpdateTimeout: 30,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Media: MediaConfig{
			StagingDir:          DefaultStagingDir,
			FetchTimeoutSeconds: DefaultFetchTimeout,
			UsageRetentionDays:  DefaultUsageRetention,
		},
		Cobalt: CobaltConfig{
			BaseURL: DefaultCobaltURL,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
