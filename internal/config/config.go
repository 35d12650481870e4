// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	HTTPAddr       string  `envconfig:"HTTP_ADDR" default:":8080"`
	RedisAddr      string  `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword  string  `envconfig:"REDIS_PASSWORD"`
	RedisDB        int     `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string  `envconfig:"REDIS_KEY_PREFIX" default:"metrics"`
	WindowSize     int     `envconfig:"ANALYTICS_WINDOW" default:"50"`
	Threshold      float64 `envconfig:"ANALYTICS_THRESHOLD" default:"2.0"`
	LatencyWindow  int     `envconfig:"LATENCY_WINDOW" default:"51"`
	WarmStart      bool    `envconfig:"WARM_START" default:"true"`
	QueueSize      int     `envconfig:"INGEST_QUEUE_SIZE" default:"1024"`
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string  `envconfig:"LOG_FORMAT" default:"text"`
}

// Load reads the configuration through lookup, or the process environment when lookup
// is nil, and validates it.
func Load(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var cfg Config
	if err := envconfig.Process("", &cfg, lookup); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: ANALYTICS_WINDOW must be positive, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.LatencyWindow < 1 || c.LatencyWindow%2 == 0 {
		return fmt.Errorf("%w: LATENCY_WINDOW must be a positive odd number, got %d", ErrInvalidConfig, c.LatencyWindow)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: ANALYTICS_THRESHOLD must be positive, got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: INGEST_QUEUE_SIZE must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// NewLogger builds the service logger from LogLevel and LogFormat.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
