package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm/logger"
)

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed metadata store
func NewSQLiteStore(cfg SQLiteConfig) (*GormStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Foreign keys are off by default in SQLite; the document_tag cascade depends on them
	dsn := cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := open(sqlite.Open(dsn), cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &GormStore{
		db:           db,
		name:         "sqlite",
		maxOpenConns: 1, // SQLite only supports 1 writer
	}, nil
}
