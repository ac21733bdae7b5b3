// Package config loads process configuration from an optional YAML file
// overlaid by environment variables.
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"
)

// Config is the complete process configuration.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Google      GoogleConfig      `yaml:"google"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Security    SecurityConfig    `yaml:"security"`
	HTTP        HTTPConfig        `yaml:"http"`
	Pending     PendingConfig     `yaml:"pending"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Log         LogConfig         `yaml:"log"`
}

// TelegramConfig configures the bot.
type TelegramConfig struct {
	BotToken          string `yaml:"bot_token"`
	APIURL            string `yaml:"api_url"`
	PollTimeoutSec    int    `yaml:"poll_timeout_sec"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
}

// GoogleConfig is the OAuth client registration.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL                string `yaml:"url"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	ConnMaxIdleSec     int    `yaml:"conn_max_idle_sec"`
}

// RedisConfig configures the optional Redis backend.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SecurityConfig holds secrets.
type SecurityConfig struct {
	// EncryptionKey is any secret string; the AES key is derived from it.
	EncryptionKey string `yaml:"encryption_key"`
}

// HTTPConfig configures the callback and health server.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PendingConfig configures the pending-authorization janitor.
type PendingConfig struct {
	TTLHours         int `yaml:"ttl_hours"`
	SweepIntervalMin int `yaml:"sweep_interval_min"`
}

// ConcurrencyConfig enables the opt-in serialization of refreshes and folder creation.
type ConcurrencyConfig struct {
	RefreshSingleFlight bool `yaml:"refresh_single_flight"`
	RefreshLock         bool `yaml:"refresh_lock"`
	FolderLock          bool `yaml:"folder_lock"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIURL:            "https://api.telegram.org",
			PollTimeoutSec:    30,
			WorkerConcurrency: 4,
		},
		Google: GoogleConfig{
			RedirectURI: "http://localhost",
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/drive",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
			ConnMaxIdleSec:     60,
		},
		HTTP:    HTTPConfig{Host: "0.0.0.0", Port: 8080},
		Pending: PendingConfig{TTLHours: 24, SweepIntervalMin: 60},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.APIURL = getEnv("TELEGRAM_API_URL", c.Telegram.APIURL)
	c.Telegram.PollTimeoutSec = getEnvInt("TELEGRAM_POLL_TIMEOUT_SEC", c.Telegram.PollTimeoutSec)
	c.Telegram.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", c.Telegram.WorkerConcurrency)

	c.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", c.Google.ClientID)
	c.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.Google.ClientSecret)
	c.Google.RedirectURI = getEnv("GOOGLE_REDIRECT_URI", c.Google.RedirectURI)
	c.Google.Scopes = getEnvList("GOOGLE_SCOPES", c.Google.Scopes)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetimeSec = getEnvInt("DB_CONN_MAX_LIFETIME_SEC", c.Database.ConnMaxLifetimeSec)
	c.Database.ConnMaxIdleSec = getEnvInt("DB_CONN_MAX_IDLE_SEC", c.Database.ConnMaxIdleSec)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Security.EncryptionKey = getEnv("ENCRYPTION_KEY", c.Security.EncryptionKey)

	c.HTTP.Host = getEnv("HTTP_HOST", c.HTTP.Host)
	c.HTTP.Port = getEnvInt("PORT", c.HTTP.Port)

	c.Pending.TTLHours = getEnvInt("PENDING_TTL_HOURS", c.Pending.TTLHours)
	c.Pending.SweepIntervalMin = getEnvInt("SWEEP_INTERVAL_MIN", c.Pending.SweepIntervalMin)

	c.Concurrency.RefreshSingleFlight = getEnvBool("REFRESH_SINGLE_FLIGHT", c.Concurrency.RefreshSingleFlight)
	c.Concurrency.RefreshLock = getEnvBool("REFRESH_LOCK", c.Concurrency.RefreshLock)
	c.Concurrency.FolderLock = getEnvBool("FOLDER_LOCK", c.Concurrency.FolderLock)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate reports every missing or invalid required value at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, key string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require(c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	require(c.Google.ClientID, "GOOGLE_CLIENT_ID")
	require(c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	require(c.Database.URL, "DATABASE_URL")
	require(c.Security.EncryptionKey, "ENCRYPTION_KEY")

	if c.Telegram.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if c.Pending.TTLHours < 1 {
		errs = append(errs, errors.New("PENDING_TTL_HOURS must be at least 1"))
	}
	if c.Pending.SweepIntervalMin < 1 {
		errs = append(errs, errors.New("SWEEP_INTERVAL_MIN must be at least 1"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", f))
	}

	return errors.Join(errs...)
}

// PendingTTL is the age after which a pending authorization is abandoned.
func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.Pending.TTLHours) * time.Hour
}

// SweepInterval is how often the janitor runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Pending.SweepIntervalMin) * time.Minute
}

// PollTimeout is the getUpdates long-poll timeout.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Telegram.PollTimeoutSec) * time.Second
}

const (
	tokenKeySize = 32
	tokenKeySalt = "drive-relay"
	tokenKeyInfo = "credential tokens v1"
)

// TokenKey derives the AES-256 key for token encryption from EncryptionKey
// using HKDF-SHA256. The same secret always yields the same key.
func (c *Config) TokenKey() ([]byte, error) {
	if c.Security.EncryptionKey == "" {
		return nil, errors.New("ENCRYPTION_KEY is required")
	}
	r := hkdf.New(sha256.New, []byte(c.Security.EncryptionKey), []byte(tokenKeySalt), []byte(tokenKeyInfo))
	key := make([]byte, tokenKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return key, nil
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvList splits a comma or space separated value.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return defaultValue
	}
	return fields
}
