package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, populated from the environment.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	// Audio node (remote playback engine) connection.
	NodeAddr        string `env:"AUDIO_NODE_ADDR" envDefault:"127.0.0.1:2333"`
	NodePassword    string `env:"AUDIO_NODE_PASSWORD" envDefault:""`
	NodeSecure      bool   `env:"AUDIO_NODE_SECURE" envDefault:"false"`
	NodeRetryBudget int    `env:"AUDIO_NODE_RETRY_BUDGET" envDefault:"10"`

	// Session lifecycle.
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"3m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	DefaultVolume int           `env:"DEFAULT_VOLUME" envDefault:"100"`

	// Presence display.
	RenderInterval time.Duration `env:"PRESENCE_RENDER_INTERVAL" envDefault:"2s"`

	// Last.fm scrobbling (optional; disabled when keys are empty).
	LastFMAPIKey string `env:"LASTFM_API_KEY"`
	LastFMSecret string `env:"LASTFM_API_SECRET"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// New loads configuration from .env (if present) and the environment.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
