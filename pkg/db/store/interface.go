package store

import (
	"context"
	"errors"

	"github.com/mwantia/folio/pkg/db/models"
)

var (
	// ErrNotFound is returned when a lookup or mutation targets a missing row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate key value")
)

// DocumentQuery narrows ListDocuments. Zero values disable a filter.
type DocumentQuery struct {
	TagID  uint
	Search string
	Limit  int
	Offset int
}

// ArticleQuery narrows ListArticles. Zero values disable a filter.
type ArticleQuery struct {
	Search string
	Limit  int
	Offset int
}

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Tag operations
	GetTagByName(ctx context.Context, name string) (*models.Tag, error)
	CreateTag(ctx context.Context, name string) error
	ListTags(ctx context.Context) ([]models.Tag, error)

	// Document operations
	CreateDocument(ctx context.Context, document *models.Document) error
	GetDocument(ctx context.Context, id uint) (*models.Document, error)
	ListDocuments(ctx context.Context, query DocumentQuery) ([]models.Document, error)
	UpdateDocument(ctx context.Context, document *models.Document) error
	DeleteDocument(ctx context.Context, id uint) error

	// Article operations
	CreateArticle(ctx context.Context, article *models.Article) error
	GetArticle(ctx context.Context, id uint) (*models.Article, error)
	ListArticles(ctx context.Context, query ArticleQuery) ([]models.Article, error)
	UpdateArticle(ctx context.Context, article *models.Article) error
	DeleteArticle(ctx context.Context, id uint) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	Stats(ctx context.Context) (*models.Stats, error)
}

var _ MetadataStore = (*GormStore)(nil)
