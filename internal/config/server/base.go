package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	Storage  StorageServerConfig  `mapstructure:"storage"  yaml:"storage"`
	HTTP     HTTPServerConfig     `mapstructure:"http"     yaml:"http"`
	Auth     AuthServerConfig     `mapstructure:"auth"     yaml:"auth"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Metadata.Type = metadataType(cfg.Metadata)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// metadataType returns the configured store type. Without one, a postgres
// DSN selects postgres and everything else falls back to sqlite.
func metadataType(cfg MetadataServerConfig) string {
	if t := strings.ToLower(strings.TrimSpace(cfg.Type)); t != "" {
		return t
	}
	if cfg.Postgres.DSN != "" {
		return "postgres"
	}
	return GetServerDefault().Metadata.Type
}

// Validate checks settings that cannot be repaired by a default.
func (cfg *BaseServerConfig) Validate() error {
	switch cfg.Metadata.Type {
	case "sqlite":
		if cfg.Metadata.SQLite.Path == "" {
			return fmt.Errorf("metadata.sqlite.path is required")
		}
	case "postgres":
		if cfg.Metadata.Postgres.DSN == "" {
			return fmt.Errorf("metadata.postgres.dsn is required (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("unsupported metadata type '%s'", cfg.Metadata.Type)
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Storage.ThumbnailHeight <= 0 {
		return fmt.Errorf("storage.thumbnail_height must be positive")
	}
	if cfg.HTTP.Workers <= 0 {
		return fmt.Errorf("http.workers must be positive")
	}
	for key, value := range map[string]string{
		"shutdown_timeout":         cfg.ShutdownTimeout,
		"storage.timeout":          cfg.Storage.Timeout,
		"http.backlog_timeout":     cfg.HTTP.BacklogTimeout,
		"http.read_header_timeout": cfg.HTTP.ReadHeaderTimeout,
		"auth.token_ttl":           cfg.Auth.TokenTTL,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration '%s'", key, value)
		}
	}

	return nil
}

// Duration parses a configured duration, returning fallback when value is
// empty or malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
