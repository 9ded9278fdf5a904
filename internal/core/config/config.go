package config

import (
	"time"

	redisclient "github.com/andrzw/marketsync/internal/infra/redis"
	"github.com/andrzw/marketsync/internal/infra/storage/postgres"
	"github.com/andrzw/marketsync/internal/sync/category"
	"github.com/andrzw/marketsync/internal/sync/reconcile"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Database    postgres.Config    `yaml:"database"`
	Redis       redisclient.Config `yaml:"redis"`
	Marketplace MarketplaceConfig  `yaml:"marketplace"`
	Sync        SyncConfig         `yaml:"sync"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MarketplaceConfig holds destination transport and auth settings.
type MarketplaceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`

	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SyncConfig holds reconciliation cycle settings.
type SyncConfig struct {
	Interval   time.Duration    `yaml:"interval"`
	Reconcile  reconcile.Config `yaml:"reconcile"`
	Categories category.Config  `yaml:"categories"`
}
