package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/folio/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	ctx := context.Background()

	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "folio.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))

	t.Cleanup(func() { s.Close() })
	return s
}

func createTags(t *testing.T, s *GormStore, names ...string) []models.Tag {
	t.Helper()
	ctx := context.Background()

	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		require.NoError(t, s.CreateTag(ctx, name))
		tag, err := s.GetTagByName(ctx, name)
		require.NoError(t, err)
		tags = append(tags, *tag)
	}
	return tags
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(SQLiteConfig{})
	assert.Error(t, err)
}

func TestCreateTagIgnoresConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateTag(ctx, "finance"))
	require.NoError(t, s.CreateTag(ctx, "finance"))

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "finance", tags[0].Name)
}

func TestGetTagByNameNotFound(t *testing.T) {
	_, err := newTestStore(t).GetTagByName(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tags := createTags(t, s, "finance", "legal")

	document := &models.Document{
		StoredFileID:     "20250101_000000.000000000_abcd1234_report.pdf",
		OriginalFilename: "report.pdf",
		Title:            "Report",
		UploadedAt:       time.Now().UTC(),
		Tags:             tags,
	}
	require.NoError(t, s.CreateDocument(ctx, document))
	require.NotZero(t, document.ID)

	loaded, err := s.GetDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "legal"}, models.TagNames(loaded.Tags))

	loaded.Title = "Annual report"
	loaded.Tags = tags[1:]
	require.NoError(t, s.UpdateDocument(ctx, loaded))

	loaded, err = s.GetDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Equal(t, "Annual report", loaded.Title)
	assert.Equal(t, []string{"legal"}, models.TagNames(loaded.Tags))

	loaded.Tags = nil
	require.NoError(t, s.UpdateDocument(ctx, loaded))
	loaded, err = s.GetDocument(ctx, document.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Tags)

	require.NoError(t, s.DeleteDocument(ctx, document.ID))
	_, err = s.GetDocument(ctx, document.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, document.ID), ErrNotFound)
}

func TestCreateDocumentRejectsDuplicateStoredID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := &models.Document{StoredFileID: "same", OriginalFilename: "a.pdf", Title: "a", UploadedAt: time.Now()}
	second := &models.Document{StoredFileID: "same", OriginalFilename: "b.pdf", Title: "b", UploadedAt: time.Now()}

	require.NoError(t, s.CreateDocument(ctx, first))
	assert.Error(t, s.CreateDocument(ctx, second))
}

func TestListDocumentsFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tags := createTags(t, s, "finance", "hr")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	docs := []*models.Document{
		{StoredFileID: "1", OriginalFilename: "a.pdf", Title: "Budget 2024", UploadedAt: base, Tags: tags[:1]},
		{StoredFileID: "2", OriginalFilename: "b.pdf", Title: "Holidays", Description: "100% paid leave", UploadedAt: base.Add(time.Hour), Tags: tags[1:]},
		{StoredFileID: "3", OriginalFilename: "c.pdf", Title: "budget_draft", UploadedAt: base.Add(2 * time.Hour), Tags: tags},
	}
	for _, d := range docs {
		require.NoError(t, s.CreateDocument(ctx, d))
	}

	all, err := s.ListDocuments(ctx, DocumentQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"budget_draft", "Holidays", "Budget 2024"}, titles(all))

	finance, err := s.ListDocuments(ctx, DocumentQuery{TagID: tags[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"budget_draft", "Budget 2024"}, titles(finance))
	assert.Len(t, finance[0].Tags, 2)

	search, err := s.ListDocuments(ctx, DocumentQuery{Search: "BUDGET"})
	require.NoError(t, err)
	assert.Equal(t, []string{"budget_draft", "Budget 2024"}, titles(search))

	literal, err := s.ListDocuments(ctx, DocumentQuery{Search: "100%"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Holidays"}, titles(literal))

	underscore, err := s.ListDocuments(ctx, DocumentQuery{Search: "t_d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"budget_draft"}, titles(underscore))
}

func TestArticleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	article := &models.Article{Title: "Hello", Content: "First post"}
	require.NoError(t, s.CreateArticle(ctx, article))
	created := article.CreatedAt
	require.False(t, created.IsZero())

	article.Title = "Hello again"
	article.CreatedAt = created.Add(24 * time.Hour)
	require.NoError(t, s.UpdateArticle(ctx, article))

	loaded, err := s.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", loaded.Title)
	assert.WithinDuration(t, created, loaded.CreatedAt, time.Second)

	found, err := s.ListArticles(ctx, ArticleQuery{Search: "FIRST"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, s.DeleteArticle(ctx, article.ID))
	assert.ErrorIs(t, s.DeleteArticle(ctx, article.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateArticle(ctx, article), ErrNotFound)
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "admin", PasswordHash: "x"}))
	assert.Error(t, s.CreateUser(ctx, &models.User{Username: "admin", PasswordHash: "y"}))

	user, err := s.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "x", user.PasswordHash)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Users)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%abc%`, LikePattern("ABC"))
	assert.Equal(t, `%50\%\_off\\%`, LikePattern(`50%_off\`))
}

func TestListFoldsNonASCII(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	document := &models.Document{StoredFileID: "u", OriginalFilename: "u.pdf", Title: "Ünïcode Handbook", UploadedAt: time.Now()}
	require.NoError(t, s.CreateDocument(ctx, document))
	assert.Equal(t, "ünïcode handbook\n", document.SearchText)

	found, err := s.ListDocuments(ctx, DocumentQuery{Search: "ünï"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ünïcode Handbook"}, titles(found))

	article := &models.Article{Title: "Été", Content: "plain"}
	require.NoError(t, s.CreateArticle(ctx, article))

	articles, err := s.ListArticles(ctx, ArticleQuery{Search: "ÉTÉ"})
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func titles(documents []models.Document) []string {
	out := make([]string, 0, len(documents))
	for _, d := range documents {
		out = append(out, d.Title)
	}
	return out
}
