package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	StatusBackendMemory = "memory"
	StatusBackendRedis  = "redis"

	RateLimitBackendLocal = "local"
	RateLimitBackendRedis = "redis"
)

type Config struct {
	DatabaseDSN  string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL  string `env:"RABBITMQ_URL,required=true"`
	RedisURL     string `env:"REDIS_URL,required=true"`
	GatewayURL   string `env:"GATEWAY_URL,required=true"`
	GatewayToken string `env:"GATEWAY_TOKEN"`

	GroupSize       int           `env:"BROADCAST_GROUP_SIZE,default=50"`
	MessageDelay    time.Duration `env:"BROADCAST_MESSAGE_DELAY,default=100ms"`
	GroupDelay      time.Duration `env:"BROADCAST_GROUP_DELAY,default=2s"`
	StatusRetention time.Duration `env:"STATUS_RETENTION,default=5m"`
	StatusOrphanTTL time.Duration `env:"STATUS_ORPHAN_TTL,default=24h"`
	StatusBackend   string        `env:"STATUS_BACKEND,default=memory"`

	RateLimitBackend  string `env:"RATE_LIMIT_BACKEND,default=redis"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=10"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StatusBackend = strings.ToLower(strings.TrimSpace(c.StatusBackend))
	switch c.StatusBackend {
	case StatusBackendMemory, StatusBackendRedis:
	default:
		return fmt.Errorf("invalid STATUS_BACKEND %q", c.StatusBackend)
	}

	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
	switch c.RateLimitBackend {
	case RateLimitBackendLocal, RateLimitBackendRedis:
	default:
		return fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	if c.GroupSize < 1 {
		return fmt.Errorf("BROADCAST_GROUP_SIZE must be >= 1")
	}
	if c.MessageDelay < 0 || c.GroupDelay < 0 {
		return fmt.Errorf("broadcast delays must not be negative")
	}
	if c.StatusRetention <= 0 {
		return fmt.Errorf("STATUS_RETENTION must be positive")
	}
	if c.StatusOrphanTTL < c.StatusRetention {
		return fmt.Errorf("STATUS_ORPHAN_TTL must not be shorter than STATUS_RETENTION")
	}
	return nil
}
