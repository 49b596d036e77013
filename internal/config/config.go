// Package config loads application configuration from environment variables
// and node definitions from a TOML flows file.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "FITFLOW"

// secretKeyLen is the AES-256 key length in bytes.
const secretKeyLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string        `envconfig:"LISTEN_ADDR" default:"127.0.0.1:1880"`
	DBPath       string        `envconfig:"DB_PATH" default:"fitflow.db"`
	SecretKeyHex string        `envconfig:"SECRET_KEY"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	FlowsPath    string        `envconfig:"FLOWS_PATH" default:"flows.toml"`
	APIRate      float64       `envconfig:"API_RATE" default:"2"`

	// SecretKey is the decoded SecretKeyHex. Nil when no key is configured,
	// in which case credential storage is unavailable.
	SecretKey []byte `ignored:"true"`
}

// HasSecretKey reports whether credential storage can be used.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == secretKeyLen
}

// Load reads configuration from FITFLOW_ environment variables and returns a
// validated Config.
// Optional variables with defaults: FITFLOW_LISTEN_ADDR (127.0.0.1:1880),
// FITFLOW_DB_PATH (fitflow.db), FITFLOW_POLL_INTERVAL (1m),
// FITFLOW_HTTP_TIMEOUT (30s), FITFLOW_FLOWS_PATH (flows.toml),
// FITFLOW_API_RATE (2 requests/second). FITFLOW_SECRET_KEY, when set, must be
// 64 hex characters.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("FITFLOW_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("FITFLOW_HTTP_TIMEOUT must be positive, got %s", cfg.HTTPTimeout)
	}
	if cfg.APIRate < 0 {
		return nil, fmt.Errorf("FITFLOW_API_RATE must not be negative, got %v", cfg.APIRate)
	}

	if cfg.SecretKeyHex != "" {
		key, err := hex.DecodeString(cfg.SecretKeyHex)
		if err != nil {
			return nil, fmt.Errorf("FITFLOW_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != secretKeyLen {
			return nil, fmt.Errorf("FITFLOW_SECRET_KEY must be %d hex characters, got %d", secretKeyLen*2, len(cfg.SecretKeyHex))
		}
		cfg.SecretKey = key
	}

	return &cfg, nil
}
