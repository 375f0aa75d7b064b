package library

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/mwantia/folio/pkg/db/models"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/mwantia/folio/pkg/log"
)

// Articles manages short-form published texts.
type Articles struct {
	Store   store.MetadataStore `fabric:"inject"`
	Logger  log.LoggerService   `fabric:"logger:articles"`
	Options Options             `fabric:"inject"`
}

func NewArticles(s store.MetadataStore, logger log.LoggerService, opts Options) *Articles {
	return &Articles{
		Store:   s,
		Logger:  logger,
		Options: opts.withDefaults(),
	}
}

// Init completes a container built instance.
func (a *Articles) Init(ctx context.Context) error {
	if a.Store == nil {
		return errors.New("articles require a metadata store")
	}
	a.Options = a.Options.withDefaults()
	return nil
}

func (a *Articles) Cleanup(ctx context.Context) error {
	return nil
}

func (a *Articles) Create(ctx context.Context, title, content string) (*models.Article, error) {
	title, content, err := validateArticle(title, content)
	if err != nil {
		return nil, err
	}

	now := a.Options.Now()
	article := &models.Article{
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.Store.CreateArticle(ctx, article); err != nil {
		return nil, err
	}

	a.Logger.Info("Created article %d '%s'", article.ID, article.Title)
	return article, nil
}

func (a *Articles) Get(ctx context.Context, id uint) (*models.Article, error) {
	article, err := a.Store.GetArticle(ctx, id)
	if err != nil {
		return nil, notFound(err, "article", id)
	}
	return article, nil
}

// Update replaces title and content. The creation time is kept.
func (a *Articles) Update(ctx context.Context, id uint, title, content string) (*models.Article, error) {
	title, content, err := validateArticle(title, content)
	if err != nil {
		return nil, err
	}

	article, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	article.Title = title
	article.Content = content
	article.UpdatedAt = a.Options.Now()

	if err := a.Store.UpdateArticle(ctx, article); err != nil {
		return nil, notFound(err, "article", id)
	}
	return article, nil
}

func (a *Articles) Delete(ctx context.Context, id uint) error {
	if err := a.Store.DeleteArticle(ctx, id); err != nil {
		return notFound(err, "article", id)
	}

	a.Logger.Info("Deleted article %d", id)
	return nil
}

// List returns all articles, newest first.
func (a *Articles) List(ctx context.Context) ([]models.Article, error) {
	return a.Store.ListArticles(ctx, store.ArticleQuery{})
}

// Search matches q case-insensitively against title and content.
// A blank query matches nothing.
func (a *Articles) Search(ctx context.Context, q string) ([]models.Article, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Article{}, nil
	}
	return a.Store.ListArticles(ctx, store.ArticleQuery{Search: q})
}

func validateArticle(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", invalid("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxFieldLength {
		return "", "", invalid("title", "title exceeds %d characters", maxFieldLength)
	}
	if strings.TrimSpace(content) == "" {
		return "", "", invalid("content", "content is required")
	}
	return title, content, nil
}
