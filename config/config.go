// Package config provides configuration management for the nexa server.
// It supports loading configuration from YAML files with environment
// variable overrides for secrets and deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultServerAddress = ":8080"
	DefaultReadTimeout   = 15 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultRedisAddress  = "localhost:6379"
	DefaultRealtimeModel = "gpt-4o-realtime-preview"
	DefaultVoice         = "alloy"
	DefaultTokenValidity = time.Hour
	DefaultSummaryQueue  = "summaries"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address"`

	// ReadTimeout bounds reading a full request including the body.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// EnableCORS enables permissive CORS for browser clients.
	EnableCORS bool `yaml:"enable_cors"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig holds Redis settings for the summary queue.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StreamConfig holds call-platform credentials.
type StreamConfig struct {
	// APIKey is the platform API key, also expected in the X-Api-Key
	// webhook header.
	APIKey string `yaml:"api_key"`

	// APISecret signs webhooks and user tokens.
	APISecret string `yaml:"api_secret"`

	// BaseURL overrides the platform endpoint (useful for tests).
	BaseURL string `yaml:"base_url"`

	// TokenValidity is the lifetime of issued call tokens.
	TokenValidity time.Duration `yaml:"token_validity"`
}

// OpenAIConfig holds the realtime AI participant settings.
type OpenAIConfig struct {
	// APIKey authenticates the realtime connection. Required for the AI
	// participant to join calls.
	APIKey string `yaml:"api_key"`

	// RealtimeModel is the conversational model attached to calls.
	RealtimeModel string `yaml:"realtime_model"`

	// Voice is the fixed voice identifier pushed to every AI session.
	Voice string `yaml:"voice"`
}

// WebhookConfig holds lifecycle orchestrator settings.
type WebhookConfig struct {
	// CompleteOnLastLeave enables the optional strengthening of the
	// participant-left handler: when the session reports zero remaining
	// participants, the meeting moves directly to completed.
	CompleteOnLastLeave bool `yaml:"complete_on_last_leave"`
}

// AuthConfig holds session-token verification settings. The auth provider
// itself is external; the server only verifies its signed session tokens.
type AuthConfig struct {
	// SessionSecret verifies HS256 session tokens on API requests.
	SessionSecret string `yaml:"session_secret"`
}

// WorkerConfig holds summary worker pool settings.
type WorkerConfig struct {
	// Count is the number of summary workers.
	Count int `yaml:"count"`

	// QueueName is the Redis queue the workers drain.
	QueueName string `yaml:"queue_name"`

	// MaxAttempts bounds retries before a job moves to the dead letter queue.
	MaxAttempts int `yaml:"max_attempts"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// JSON enables JSON output (production) instead of console output.
	JSON bool `yaml:"json"`

	// Environment is attached to every log entry.
	Environment string `yaml:"environment"`
}

// Config is the root server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Stream   StreamConfig   `yaml:"stream"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Auth     AuthConfig     `yaml:"auth"`
	Workers  WorkerConfig   `yaml:"workers"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig returns a Config with development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      DefaultServerAddress,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			EnableCORS:   true,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "nexa",
			User:     "nexa",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Redis: RedisConfig{
			Address: DefaultRedisAddress,
		},
		Stream: StreamConfig{
			TokenValidity: DefaultTokenValidity,
		},
		OpenAI: OpenAIConfig{
			RealtimeModel: DefaultRealtimeModel,
			Voice:         DefaultVoice,
		},
		Workers: WorkerConfig{
			Count:       2,
			QueueName:   DefaultSummaryQueue,
			MaxAttempts: 3,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
		},
	}
}

// Load reads configuration from the given YAML file (if path is non-empty)
// and applies environment variable overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides secrets and addresses from the environment.
// Environment variables:
//   - NEXA_SERVER_ADDRESS
//   - DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, DB_SSLMODE
//   - REDIS_ADDRESS, REDIS_PASSWORD
//   - STREAM_API_KEY, STREAM_API_SECRET, STREAM_BASE_URL
//   - OPENAI_API_KEY
//   - NEXA_SESSION_SECRET
func (c *Config) applyEnv() {
	if v := os.Getenv("NEXA_SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Database.SSLMode = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("STREAM_API_SECRET"); v != "" {
		c.Stream.APISecret = v
	}
	if v := os.Getenv("STREAM_BASE_URL"); v != "" {
		c.Stream.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("NEXA_SESSION_SECRET"); v != "" {
		c.Auth.SessionSecret = v
	}
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
		return fmt.Errorf("database host, name, and user are required")
	}
	if c.Workers.Count < 0 {
		return fmt.Errorf("worker count must not be negative")
	}
	if c.Stream.TokenValidity <= 0 {
		return fmt.Errorf("stream token validity must be positive")
	}
	return nil
}
