package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 15 * time.Minute
	}
	if cfg.Sync.Reconcile.PageSize == 0 {
		cfg.Sync.Reconcile.PageSize = 500
	}
	if cfg.Sync.Reconcile.BatchSize == 0 {
		cfg.Sync.Reconcile.BatchSize = 100
	}
	if len(cfg.Sync.Reconcile.SellableStatuses) == 0 {
		cfg.Sync.Reconcile.SellableStatuses = []string{"active"}
	}
	if cfg.Marketplace.Timeout == 0 {
		cfg.Marketplace.Timeout = 30 * time.Second
	}
	if cfg.Marketplace.MaxAttempts == 0 {
		cfg.Marketplace.MaxAttempts = 4
	}
}
