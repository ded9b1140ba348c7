// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	Port            string        `env:"PORT" envDefault:"3000"`
	AuthDataDir     string        `env:"AUTH_DATA_DIR" envDefault:".wwebjs_auth"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	BrowserHeadless bool          `env:"BROWSER_HEADLESS" envDefault:"true"`
	SendTimeout     time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
}

// Production reports whether the process runs with production hardening
// (generic error messages, no cause leakage).
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.AuthDataDir == "" {
		return nil, fmt.Errorf("AUTH_DATA_DIR must not be empty")
	}
	if cfg.SendTimeout <= 0 {
		return nil, fmt.Errorf("SEND_TIMEOUT must be positive")
	}

	return cfg, nil
}
