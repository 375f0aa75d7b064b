package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm/logger"
)

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewPostgresStore creates a metadata store backed by PostgreSQL through pgx
func NewPostgresStore(cfg PostgresConfig) (*GormStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}

	db, err := open(postgres.Open(cfg.DSN), cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	return &GormStore{
		db:           db,
		name:         "postgres",
		maxOpenConns: cfg.MaxOpenConns,
	}, nil
}
