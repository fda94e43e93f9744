package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"scrimhub/internal/common/nats"
	"scrimhub/internal/payments"
	"scrimhub/internal/session"
)

// Config holds client configuration
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	AccessToken     string `envconfig:"SCRIM_ACCESS_TOKEN"`
	CallbackBaseURL string `envconfig:"SCRIM_CALLBACK_BASE_URL" default:"http://localhost:8085"`
	CallbackAddr    string `envconfig:"SCRIM_CALLBACK_ADDR" default:":8085"`
	WatchSchedule   string `envconfig:"SCRIM_WATCH_SCHEDULE" default:"@every 1m"`

	API   payments.ClientConfig
	Poll  payments.PollerConfig
	Store session.Config
	NATS  nats.Config
}

// loadConfig reads an optional .env file, then the environment.
func loadConfig(envFile string) (Config, error) {
	var cfg Config
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", envFile, err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process config: %w", err)
	}
	return cfg, nil
}
