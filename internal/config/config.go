// Package config loads server and client settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Prefix = "CARDGAME_"

type Config struct {
	TCPAddr          string        `env:"TCP_ADDR" envDefault:":9050"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":9060"`
	ConnectKey       string        `env:"CONNECT_KEY" envDefault:"card-battle"`
	RulesPath        string        `env:"RULES_PATH"`
	HandSize         int           `env:"HAND_SIZE" envDefault:"5"`
	Quorum           int           `env:"QUORUM" envDefault:"2"`
	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"20ms"`
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"10"`
	HighWater        int           `env:"HIGH_WATER" envDefault:"20"`
	QueueCapacity    int           `env:"QUEUE_CAPACITY" envDefault:"256"`
	OutboxSize       int           `env:"OUTBOX_SIZE" envDefault:"32"`
	ReadTimeout      time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"5s"`
	RateLimit        float64       `env:"RATE_LIMIT" envDefault:"50"`
	RateBurst        int           `env:"RATE_BURST" envDefault:"20"`
	AutoPassTurn     bool          `env:"AUTO_PASS_TURN" envDefault:"true"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment   bool          `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

type ClientConfig struct {
	ServerAddr        string        `env:"SERVER_ADDR" envDefault:"127.0.0.1:9050"`
	ConnectKey        string        `env:"CONNECT_KEY" envDefault:"card-battle"`
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL" envDefault:"2s"`
	ReconnectAttempts uint          `env:"RECONNECT_ATTEMPTS" envDefault:"5"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"15s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment    bool          `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

var ErrInvalid = errors.New("invalid configuration")

// Load reads an optional .env then parses the server configuration.
func Load(files ...string) (Config, error) {
	var cfg Config
	if err := parse(&cfg, files); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func LoadClient(files ...string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := parse(&cfg, files); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ServerAddr == "" {
		return ClientConfig{}, fmt.Errorf("%w: SERVER_ADDR is empty", ErrInvalid)
	}
	return cfg, nil
}

func parse(target any, files []string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.ParseWithOptions(target, env.Options{Prefix: Prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.Quorum != 2:
		return fmt.Errorf("%w: QUORUM must be 2, rooms seat exactly two players", ErrInvalid)
	case c.HandSize < 1:
		return fmt.Errorf("%w: HAND_SIZE must be positive", ErrInvalid)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: TICK_INTERVAL must be positive", ErrInvalid)
	case c.BatchSize < 1 || c.HighWater < c.BatchSize:
		return fmt.Errorf("%w: need 1 <= BATCH_SIZE <= HIGH_WATER", ErrInvalid)
	case c.QueueCapacity < 1 || c.OutboxSize < 1:
		return fmt.Errorf("%w: queue sizes must be positive", ErrInvalid)
	case c.ConnectKey == "":
		return fmt.Errorf("%w: CONNECT_KEY is empty", ErrInvalid)
	}
	return nil
}
