// Package server is the event dispatch boundary of the relay: it upgrades
// HTTP connections to WebSockets, decodes inbound wire events into calls on
// the chat core, and delivers the resulting envelopes back to the right
// connections.
package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the boundary's runtime settings. Instances are constructed
// explicitly and injected; there is no package-level configuration.
type Config struct {
	Port           string   `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`

	MaxMessageSize int64 `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`

	RateLimitBurst          int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	RateLimitRefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`

	// HistoryLimit bounds per-room history to the most recent N messages.
	// Zero keeps history unbounded.
	HistoryLimit int `envconfig:"HISTORY_LIMIT" default:"0"`

	// AnnounceRoomSwitch runs the full leave sequence for the old room when
	// a connection joins a new room without leaving first. Off by default:
	// the switch is silent.
	AnnounceRoomSwitch bool `envconfig:"ANNOUNCE_ROOM_SWITCH" default:"false"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// NewConfig returns a Config populated with defaults, ignoring the
// environment. Tests customize the returned value directly.
func NewConfig() *Config {
	cfg := &Config{
		Port:                    ":8080",
		AllowedOrigins:          []string{"http://localhost:8080"},
		MaxMessageSize:          4096,
		RateLimitBurst:          10,
		RateLimitRefillInterval: time.Second,
		ShutdownTimeout:         10 * time.Second,
	}
	return cfg
}

// LoadConfig reads configuration from the environment, falling back to
// defaults for anything unset.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) sanitize() {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	if c.RateLimitRefillInterval <= 0 {
		c.RateLimitRefillInterval = time.Second
	}
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
