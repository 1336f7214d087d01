package app

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration sourced from the environment.
type Config struct {
	Addr              string        `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout       time.Duration `envconfig:"APP_READ_TIMEOUT" default:"5s"`
	ReadHeaderTimeout time.Duration `envconfig:"APP_READ_HEADER_TIMEOUT" default:"5s"`
	WriteTimeout      time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `envconfig:"APP_IDLE_TIMEOUT" default:"60s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// DatabaseURL selects the postgres store when set; empty means in-memory.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// Currency is the single base currency for the ledger.
	Currency string `envconfig:"LEDGER_CURRENCY" default:"USD"`

	// DevSeed installs a minimal chart of accounts on startup.
	DevSeed bool `envconfig:"DEV_SEED" default:"false"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
