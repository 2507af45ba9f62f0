// Package config provides runtime configuration values for the application.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds configuration knobs for the HTTP surface, the remote store
// client, and the duplicate-suppression windows.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	AirtableKey     string        `envconfig:"AIRTABLE_KEY" required:"true"`
	AirtableBase    string        `envconfig:"AIRTABLE_BASE" required:"true"`
	AirtableBaseURL string        `envconfig:"AIRTABLE_BASE_URL" default:"https://api.airtable.com/v0"`
	AirtableTimeout time.Duration `envconfig:"AIRTABLE_TIMEOUT" default:"10s"`

	// Table names match the store schema the original base was built with.
	ProductsTable  string `envconfig:"PRODUCTS_TABLE" default:"Товары"`
	WriteoffsTable string `envconfig:"WRITEOFFS_TABLE" default:"Списания"`
	SuppliesTable  string `envconfig:"SUPPLIES_TABLE" default:"Поставки"`

	CooldownWindow  time.Duration `envconfig:"COOLDOWN_WINDOW" default:"300s"`
	DebounceWindow  time.Duration `envconfig:"DEBOUNCE_WINDOW" default:"2s"`
	ErrorDisplayTTL time.Duration `envconfig:"ERROR_DISPLAY_TTL" default:"5s"`

	// RedisAddr, when set, switches the cooldown cache to Redis so the
	// window is shared across sessions and processes.
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`
}

// Load collects configuration from environment with defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.CooldownWindow <= 0 {
		return Config{}, errors.New("cooldown window must be positive")
	}
	if cfg.DebounceWindow <= 0 {
		return Config{}, errors.New("debounce window must be positive")
	}
	return cfg, nil
}
