package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment-sourced settings. It is read once at
// startup and passed to constructors; nothing reads the environment
// after Load returns.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"campuslink.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// APIBase is the path prefix all routes are mounted under. The
	// auth middleware derives its exempt-path list from it.
	APIBase string `env:"API_URL" envDefault:"/api/v1"`

	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET"`

	PostmarkToken string `env:"POSTMARK_SERVER_TOKEN"`
	FromEmail     string `env:"FROM_EMAIL"`
}

// Load parses configuration from environment variables and validates
// the fields the server cannot run without.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	if cfg.RefreshTokenSecret == "" {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_SECRET is required")
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return cfg, nil
}
