package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all process configuration for the impact connector. The Impact
// integration settings themselves live in the host settings table, see
// internal/settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Impact    ImpactConfig    `yaml:"impact"`
	Events    EventsConfig    `yaml:"events"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Env             string        `yaml:"env"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	MasterKey string `yaml:"master_key"`

	// CallbackSecret signs the storefront click id callback. MasterKey is
	// used when empty.
	CallbackSecret string `yaml:"callback_secret"`
}

// CallbackKey returns the key that signs click id callback tokens.
func (a AuthConfig) CallbackKey() string {
	if a.CallbackSecret != "" {
		return a.CallbackSecret
	}
	return a.MasterKey
}

// RateLimitConfig limits the public click-id callback per client IP.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ImpactConfig holds process-level knobs for talking to the Impact API.
type ImpactConfig struct {
	APIURL          string        `yaml:"api_url"`
	PlatformName    string        `yaml:"platform_name"`
	PlatformVersion string        `yaml:"platform_version"`
	StoreID         int           `yaml:"store_id"`
	SettingsRefresh time.Duration `yaml:"settings_refresh"`
}

// UserAgent is sent with every request to the Impact API.
func (c ImpactConfig) UserAgent() string {
	return c.PlatformName + "-" + c.PlatformVersion
}

// EventsConfig configures how host lifecycle events reach the service.
type EventsConfig struct {
	WebhookEnabled bool   `yaml:"webhook_enabled"`
	RedisChannel   string `yaml:"redis_channel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Env:             "development",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5432,
			User:     "storefront",
			Password: "storefront_secret",
			DBName:   "storefront",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     5,
			Burst:   10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Impact: ImpactConfig{
			APIURL:          "https://api.impact.com/Advertisers/",
			PlatformName:    "storefront",
			PlatformVersion: "4.60",
			SettingsRefresh: time.Minute,
		},
		Events: EventsConfig{
			WebhookEnabled: true,
			RedisChannel:   "storefront.events",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("IMPACT_HTTP_ADDR", c.Server.Addr)
	c.Server.Env = getEnv("IMPACT_ENV", c.Server.Env)
	c.Server.ShutdownTimeout = getDurationEnv("IMPACT_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.Enabled = getBoolEnv("IMPACT_DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnv("IMPACT_DB_HOST", c.Database.Host)
	c.Database.Port = getIntEnv("IMPACT_DB_PORT", c.Database.Port)
	c.Database.User = getEnv("IMPACT_DB_USER", c.Database.User)
	c.Database.Password = getEnv("IMPACT_DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("IMPACT_DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("IMPACT_DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = getIntEnv("IMPACT_DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getIntEnv("IMPACT_DB_MIN_CONNS", c.Database.MinConns)

	c.Redis.Enabled = getBoolEnv("IMPACT_REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("IMPACT_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("IMPACT_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("IMPACT_REDIS_DB", c.Redis.DB)

	c.Auth.Enabled = getBoolEnv("IMPACT_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.MasterKey = getEnv("IMPACT_API_KEY_MASTER", c.Auth.MasterKey)
	c.Auth.CallbackSecret = getEnv("IMPACT_CALLBACK_SECRET", c.Auth.CallbackSecret)

	c.RateLimit.Enabled = getBoolEnv("IMPACT_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RPS = getFloatEnv("IMPACT_RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = getIntEnv("IMPACT_RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Log.Level = getEnv("IMPACT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("IMPACT_LOG_FORMAT", c.Log.Format)

	c.Metrics.Enabled = getBoolEnv("IMPACT_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("IMPACT_METRICS_PATH", c.Metrics.Path)

	c.Impact.APIURL = getEnv("IMPACT_API_URL", c.Impact.APIURL)
	c.Impact.PlatformName = getEnv("IMPACT_PLATFORM_NAME", c.Impact.PlatformName)
	c.Impact.PlatformVersion = getEnv("IMPACT_PLATFORM_VERSION", c.Impact.PlatformVersion)
	c.Impact.StoreID = getIntEnv("IMPACT_STORE_ID", c.Impact.StoreID)
	c.Impact.SettingsRefresh = getDurationEnv("IMPACT_SETTINGS_REFRESH", c.Impact.SettingsRefresh)

	c.Events.WebhookEnabled = getBoolEnv("IMPACT_EVENTS_WEBHOOK_ENABLED", c.Events.WebhookEnabled)
	c.Events.RedisChannel = getEnv("IMPACT_EVENTS_REDIS_CHANNEL", c.Events.RedisChannel)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("IMPACT_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Auth.CallbackKey() == "" {
		return fmt.Errorf("IMPACT_CALLBACK_SECRET or IMPACT_API_KEY_MASTER is required to sign click id callbacks")
	}
	if !strings.HasSuffix(c.Impact.APIURL, "/") {
		return fmt.Errorf("impact api url must end with '/': %q", c.Impact.APIURL)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
