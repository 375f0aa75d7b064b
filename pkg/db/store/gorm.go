package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwantia/folio/pkg/db/migrations"
	"github.com/mwantia/folio/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore implements MetadataStore on top of any gorm dialector
type GormStore struct {
	db           *gorm.DB
	name         string
	maxOpenConns int
}

func open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	// Default to silent logging
	if level == 0 {
		level = logger.Silent
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// ParseLogLevel maps a configured name onto gorm's logger levels.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info", "debug":
		return logger.Info
	default:
		return logger.Silent
	}
}

// DB returns the underlying GORM database instance
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Name returns the dialect this store was opened with
func (s *GormStore) Name() string {
	return s.name
}

// Connect initializes the database connection
func (s *GormStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(s.maxOpenConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending versioned migrations
func (s *GormStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Tag operations

func (s *GormStore) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

// CreateTag inserts a tag unless one with the same name already exists.
// A conflicting insert from a concurrent caller is not an error.
func (s *GormStore) CreateTag(ctx context.Context, name string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&models.Tag{Name: name}).Error

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (s *GormStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	return tags, err
}

// Document operations

// CreateDocument inserts the document row and its tag links. Tags must
// already exist; they are referenced, never upserted.
func (s *GormStore) CreateDocument(ctx context.Context, document *models.Document) error {
	return translate(s.db.WithContext(ctx).Omit("Tags.*").Create(document).Error)
}

func (s *GormStore) GetDocument(ctx context.Context, id uint) (*models.Document, error) {
	var document models.Document
	err := s.db.WithContext(ctx).
		Preload("Tags", orderTags).
		Where("id = ?", id).
		First(&document).Error
	if err != nil {
		return nil, translate(err)
	}
	return &document, nil
}

func (s *GormStore) ListDocuments(ctx context.Context, query DocumentQuery) ([]models.Document, error) {
	var documents []models.Document
	tx := s.db.WithContext(ctx).Model(&models.Document{}).Preload("Tags", orderTags)

	if query.TagID != 0 {
		tx = tx.Select("document.*").
			Joins("JOIN document_tag ON document_tag.document_id = document.id").
			Where("document_tag.tag_id = ?", query.TagID)
	}

	if query.Search != "" {
		tx = tx.Where(`document.search_text LIKE ? ESCAPE '\'`, LikePattern(query.Search))
	}

	tx = paginate(tx, query.Limit, query.Offset)

	err := tx.Order("document.uploaded_at DESC").Order("document.id DESC").Find(&documents).Error
	return documents, err
}

// UpdateDocument writes the mutable scalar fields and replaces the tag set.
func (s *GormStore) UpdateDocument(ctx context.Context, document *models.Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(document).
			Select("title", "author", "year", "description", "search_text", "image_id", "updated_at").
			Omit(clause.Associations).
			Updates(document)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		association := tx.Model(document).Omit("Tags.*").Association("Tags")
		if len(document.Tags) == 0 {
			return association.Clear()
		}
		return association.Replace(document.Tags)
	})
}

func (s *GormStore) DeleteDocument(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&documentTag{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Document{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Article operations

func (s *GormStore) CreateArticle(ctx context.Context, article *models.Article) error {
	return s.db.WithContext(ctx).Create(article).Error
}

func (s *GormStore) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&article).Error
	if err != nil {
		return nil, translate(err)
	}
	return &article, nil
}

func (s *GormStore) ListArticles(ctx context.Context, query ArticleQuery) ([]models.Article, error) {
	var articles []models.Article
	tx := s.db.WithContext(ctx).Model(&models.Article{})

	if query.Search != "" {
		tx = tx.Where(`search_text LIKE ? ESCAPE '\'`, LikePattern(query.Search))
	}

	tx = paginate(tx, query.Limit, query.Offset)

	err := tx.Order("created_at DESC").Order("id DESC").Find(&articles).Error
	return articles, err
}

// UpdateArticle replaces title and content; created_at is never written.
func (s *GormStore) UpdateArticle(ctx context.Context, article *models.Article) error {
	result := s.db.WithContext(ctx).Model(article).
		Select("title", "content", "search_text", "updated_at").
		Updates(article)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteArticle(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Article{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// User operations

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}
	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.Article{}, &stats.Articles},
		{&models.Document{}, &stats.Documents},
		{&models.Tag{}, &stats.Tags},
		{&models.User{}, &stats.Users},
	}

	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return stats, nil
}

// documentTag maps the join table for direct deletes
type documentTag struct {
	DocumentID uint `gorm:"primaryKey"`
	TagID      uint `gorm:"primaryKey"`
}

func (documentTag) TableName() string { return "document_tag" }

// LikePattern folds q like models.FoldSearch and escapes LIKE wildcards so
// q matches literally as a substring. The escape character is a backslash.
func LikePattern(q string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(q)) + "%"
}

func orderTags(db *gorm.DB) *gorm.DB {
	return db.Order("tag.name ASC")
}

func paginate(tx *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	return tx
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
