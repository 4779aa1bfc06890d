package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	API     API
	Socket  Socket
	Auth    Auth
	Metrics Metrics
}

type API struct {
	BaseURL string `env:"API_BASE_URL" env-default:"http://localhost:8000"`
}

type Socket struct {
	// Base real-time endpoint; per-group and notification paths are
	// appended by the clients.
	BaseURL string `env:"WS_BASE_URL" env-default:"ws://localhost:8000"`
}

type Auth struct {
	Token string `env:"ACCESS_TOKEN" env-required:"true"`
}

type Metrics struct {
	// Empty means no scrape listener.
	Addr string `env:"METRICS_ADDR"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment variables: %w", err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	cfg.Socket.BaseURL = strings.TrimRight(cfg.Socket.BaseURL, "/")
	return cfg, nil
}
