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

	if cfg.Proof.TargetWallet == "" {
		return nil, fmt.Errorf("proof.target_wallet is required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Explorer.PageSize == 0 {
		cfg.Explorer.PageSize = 50
	}
	if cfg.Explorer.CallTimeout == 0 {
		cfg.Explorer.CallTimeout = Duration(30 * time.Second)
	}
	if cfg.Explorer.MaxAttempts == 0 {
		cfg.Explorer.MaxAttempts = 3
	}
	if cfg.Explorer.BaseDelay == 0 {
		cfg.Explorer.BaseDelay = Duration(1 * time.Second)
	}
	if cfg.Proof.PollInterval == 0 {
		cfg.Proof.PollInterval = Duration(30 * time.Second)
	}
	if cfg.Proof.BatchSize == 0 {
		cfg.Proof.BatchSize = 20
	}
	if cfg.Proof.MaxTaskAttempts == 0 {
		cfg.Proof.MaxTaskAttempts = 10
	}
	if cfg.Proof.DeadlineOffset == 0 {
		cfg.Proof.DeadlineOffset = Duration(15 * time.Minute)
	}
}
