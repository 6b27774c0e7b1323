// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT, default=8080"`
	Env       string `env:"ENV, default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	DatabaseDSN string `env:"DATABASE_DSN, default=host=localhost user=user password=password dbname=chatterbox port=5432 sslmode=disable"`

	Redis RedisConfig
	Auth  AuthConfig
	Chat  ChatConfig
	WS    WebSocketConfig
}

type RedisConfig struct {
	// Addr enables the cross-node relay when set.
	Addr    string `env:"REDIS_ADDR"`
	DB      int    `env:"REDIS_DB, default=0"`
	Channel string `env:"RELAY_CHANNEL, default=chat:broadcast"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET, default=change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=72h"`
}

type ChatConfig struct {
	StoreTimeout          time.Duration `env:"STORE_TIMEOUT, default=5s"`
	StoreRetryInterval    time.Duration `env:"STORE_RETRY_INTERVAL, default=10s"`
	TypingTTL             time.Duration `env:"TYPING_TTL, default=8s"`
	HistoryLimit          int           `env:"HISTORY_LIMIT, default=50"`
	AnnouncePresence      bool          `env:"ANNOUNCE_PRESENCE, default=true"`
	AnnounceLang          string        `env:"ANNOUNCE_LANG, default=en"`
	RequireKnownRecipient bool          `env:"REQUIRE_KNOWN_RECIPIENT, default=false"`
}

type WebSocketConfig struct {
	SendBuffer     int      `env:"SEND_BUFFER, default=256"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE, default=8192"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through the given lookuper. Tests pass a
// MapLookuper instead of mutating the process environment.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Chat.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.Chat.StoreTimeout)
	}
	if c.Chat.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL must be positive, got %s", c.Chat.TypingTTL)
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.Chat.HistoryLimit)
	}
	if c.WS.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.WS.SendBuffer)
	}
	if c.WS.MaxMessageSize <= 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.WS.MaxMessageSize)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// RelayEnabled reports whether a Redis address was configured.
func (c *Config) RelayEnabled() bool {
	return c.Redis.Addr != ""
}
