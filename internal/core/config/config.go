package config

import (
	"fmt"
	"time"

	redisclient "walletgate/internal/infra/redis"
	"walletgate/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Explorer ExplorerConfig     `yaml:"explorer"`
	Proof    ProofConfig        `yaml:"proof"`
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

// ExplorerConfig holds settings for the block-explorer GraphQL endpoint.
type ExplorerConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	PageSize    int      `yaml:"page_size"`
	CallTimeout Duration `yaml:"call_timeout"`
	MaxAttempts int      `yaml:"max_attempts"` // per explorer HTTP call
	BaseDelay   Duration `yaml:"base_delay"`   // backoff base
}

// ProofConfig holds the verification engine settings.
type ProofConfig struct {
	TargetWallet    string   `yaml:"target_wallet"` // challenge address
	PollInterval    Duration `yaml:"poll_interval"`
	BatchSize       int      `yaml:"batch_size"`
	MaxTaskAttempts int      `yaml:"max_task_attempts"` // per-task retry ceiling
	DeadlineOffset  Duration `yaml:"deadline_offset"`
	RetentionPeriod Duration `yaml:"retention_period"` // 0 = keep forever
	EncryptionKey   string   `yaml:"encryption_key"`   // hex, 32 bytes
}

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
