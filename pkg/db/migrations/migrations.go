package migrations

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mwantia/folio/pkg/db/models"
	"gorm.io/gorm"
)

// Migration represents a single schema change
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   *time.Time
}

type migrationHistory struct {
	ID          uint   `gorm:"primaryKey"`
	Version     int    `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

func (migrationHistory) TableName() string { return "migration_history" }

// Migrator applies versioned migrations and records them in migration_history
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator creates a migrator for the folio content schema.
func NewMigrator(db *gorm.DB) *Migrator {
	return NewMigratorWith(db, allMigrations())
}

// NewMigratorWith creates a migrator for an explicit list of migrations.
func NewMigratorWith(db *gorm.DB, migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	return &Migrator{
		db:         db,
		migrations: sorted,
	}
}

// Migrate runs all pending migrations, each inside its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}

		if err := m.run(ctx, migration); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
	}

	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureHistory(ctx); err != nil {
		return err
	}

	var last migrationHistory
	if err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error; err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	migration, ok := m.find(last.Version)
	if !ok {
		return fmt.Errorf("migration %d not found", last.Version)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if migration.Down != nil {
			if err := migration.Down(tx); err != nil {
				return fmt.Errorf("rollback of %d failed: %w", migration.Version, err)
			}
		}
		return tx.Delete(&last).Error
	})
}

// Status lists every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
		}
		if at, ok := applied[migration.Version]; ok {
			appliedAt := time.Unix(at, 0).UTC()
			status.Applied = true
			status.AppliedAt = &appliedAt
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (m *Migrator) ensureHistory(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&migrationHistory{}); err != nil {
		return fmt.Errorf("failed to create migration history table: %w", err)
	}
	return nil
}

// applied maps applied versions to their unix apply time.
func (m *Migrator) applied(ctx context.Context) (map[int]int64, error) {
	if err := m.ensureHistory(ctx); err != nil {
		return nil, err
	}

	var history []migrationHistory
	if err := m.db.WithContext(ctx).Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}

	versions := make(map[int]int64, len(history))
	for _, h := range history {
		versions[h.Version] = h.AppliedAt
	}
	return versions, nil
}

func (m *Migrator) find(version int) (Migration, bool) {
	for _, migration := range m.migrations {
		if migration.Version == version {
			return migration, true
		}
	}
	return Migration{}, false
}

func (m *Migrator) run(ctx context.Context, migration Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return err
		}

		return tx.Create(&migrationHistory{
			Version:     migration.Version,
			Description: migration.Description,
		}).Error
	})
}

// allMigrations returns the content schema history
func allMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Initial content schema",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(
					&models.User{},
					&models.Tag{},
					&models.Article{},
					&models.Document{},
				)
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(
					"document_tag",
					&models.Document{},
					&models.Article{},
					&models.Tag{},
					&models.User{},
				)
			},
		},
		{
			Version:     2,
			Description: "Index document titles",
			Up: func(db *gorm.DB) error {
				if db.Migrator().HasIndex(&models.Document{}, "idx_document_title") {
					return nil
				}
				return db.Exec("CREATE INDEX idx_document_title ON document (title)").Error
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropIndex(&models.Document{}, "idx_document_title")
			},
		},
		{
			Version:     3,
			Description: "Add folded search text",
			Up: func(db *gorm.DB) error {
				for _, model := range []any{&models.Document{}, &models.Article{}} {
					if db.Migrator().HasColumn(model, "SearchText") {
						continue
					}
					if err := db.Migrator().AddColumn(model, "SearchText"); err != nil {
						return err
					}
				}
				return backfillSearchText(db)
			},
			Down: func(db *gorm.DB) error {
				if err := db.Migrator().DropColumn(&models.Document{}, "SearchText"); err != nil {
					return err
				}
				return db.Migrator().DropColumn(&models.Article{}, "SearchText")
			},
		},
	}
}

// backfillSearchText folds rows written before search_text existed.
func backfillSearchText(db *gorm.DB) error {
	update := db.Session(&gorm.Session{NewDB: true})

	var documents []models.Document
	err := db.Model(&models.Document{}).
		Select("id", "title", "description").
		Where("search_text = ''").
		FindInBatches(&documents, 200, func(tx *gorm.DB, batch int) error {
			for _, d := range documents {
				err := update.Model(&models.Document{}).
					Where("id = ?", d.ID).
					UpdateColumn("search_text", models.FoldSearch(d.Title, d.Description)).Error
				if err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("failed to backfill document search text: %w", err)
	}

	var articles []models.Article
	err = db.Model(&models.Article{}).
		Select("id", "title", "content").
		Where("search_text = ''").
		FindInBatches(&articles, 200, func(tx *gorm.DB, batch int) error {
			for _, a := range articles {
				err := update.Model(&models.Article{}).
					Where("id = ?", a.ID).
					UpdateColumn("search_text", models.FoldSearch(a.Title, a.Content)).Error
				if err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("failed to backfill article search text: %w", err)
	}
	return nil
}
