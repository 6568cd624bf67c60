// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the notifier service.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Poll      PollConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
	Scraper   ScraperConfig
	Mirror    MirrorConfig
	RabbitMQ  RabbitMQConfig
	Logging   LoggingConfig
}

// ServerConfig contains HTTP server configuration for the keep-alive and
// admin endpoints.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	APIKeys         []string
}

// DatabaseConfig contains database connection configuration. An empty URL
// selects the flat-file store instead of PostgreSQL.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	URL            string
	FilePath       string
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// PollConfig drives the scrape cycle scheduler.
type PollConfig struct {
	Interval     time.Duration
	CycleTimeout time.Duration
}

// RateLimitConfig bounds outbound notification throughput: at most Burst
// sends within any trailing Window.
type RateLimitConfig struct {
	Burst  int
	Window time.Duration
}

// NotifyConfig contains the notification sink configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type NotifyConfig struct {
	WebhookURL    string
	Username      string
	RecencyWindow time.Duration
	SendTimeout   time.Duration
}

// ScraperConfig contains the results-page scraper configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ScraperConfig struct {
	URL         string
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Tournaments []string
}

// MirrorConfig contains the spreadsheet mirror endpoint configuration. An
// empty URL disables mirroring.
type MirrorConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// RabbitMQConfig contains the optional match-event publisher configuration.
// An empty host disables publishing.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables. A .env file,
// if present, is loaded first so secrets can stay out of config.yaml.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	if c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhookurl is required")
	}
	if c.Scraper.URL == "" {
		return fmt.Errorf("scraper.url is required")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be positive, got %d", c.RateLimit.Burst)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	return nil
}

// CycleTimeout returns the effective soft timeout for a single scrape cycle:
// the configured value, or the poll interval minus 30s with a one minute
// floor when unset.
func (c *Config) CycleTimeout() time.Duration {
	if c.Poll.CycleTimeout > 0 {
		return c.Poll.CycleTimeout
	}
	timeout := c.Poll.Interval - 30*time.Second
	if timeout < time.Minute {
		timeout = time.Minute
	}
	return timeout
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.apikeys", []string{})

	// Database
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.filepath", "matches.json")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Poll
	viper.SetDefault("poll.interval", 10*time.Minute)
	viper.SetDefault("poll.cycletimeout", time.Duration(0))

	// Rate limit
	viper.SetDefault("ratelimit.burst", 5)
	viper.SetDefault("ratelimit.window", 6*time.Second)

	// Notify
	viper.SetDefault("notify.username", "Match Results")
	viper.SetDefault("notify.recencywindow", 24*time.Hour)
	viper.SetDefault("notify.sendtimeout", 15*time.Second)

	// Scraper
	viper.SetDefault("scraper.url", "https://www.vlr.gg/matches/results")
	viper.SetDefault("scraper.baseurl", "https://www.vlr.gg")
	viper.SetDefault("scraper.useragent", "Mozilla/5.0")
	viper.SetDefault("scraper.timeout", 30*time.Second)
	viper.SetDefault("scraper.tournaments", []string{})

	// Mirror
	viper.SetDefault("mirror.webhookurl", "")
	viper.SetDefault("mirror.timeout", 20*time.Second)

	// RabbitMQ
	viper.SetDefault("rabbitmq.host", "")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "matchwatch.results")
	viper.SetDefault("rabbitmq.queue", "matchwatch.match-completed")
	viper.SetDefault("rabbitmq.routingkey", "match.completed")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
