package library

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	config "github.com/mwantia/folio/internal/config/server"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/mwantia/folio/pkg/log"
	"github.com/mwantia/folio/pkg/storage"
	"github.com/mwantia/folio/pkg/thumbnail"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *store.GormStore
	gateway   *storage.LocalGateway
	tags      *TagRegistry
	documents *Documents
	articles  *Articles
	logs      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(dir, "folio.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	gateway, err := storage.NewLocalGateway(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	return newFixtureWith(t, s, gateway)
}

func newFixtureWith(t *testing.T, s *store.GormStore, gateway *storage.LocalGateway) *fixture {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := log.NewLoggerServiceWithWriter("library", config.LogServerConfig{Level: "DEBUG"}, logs)
	opts := Options{StorageTimeout: 5 * time.Second, Now: steppingClock()}

	tags := NewTagRegistry(s)
	return &fixture{
		store:     s,
		gateway:   gateway,
		tags:      tags,
		documents: NewDocuments(s, gateway, thumbnail.New(thumbnail.DefaultHeight), tags, logger.Named("documents"), opts),
		articles:  NewArticles(s, logger.Named("articles"), opts),
		logs:      logs,
	}
}

// steppingClock advances one second per call so ordering by time is stable.
func steppingClock() func() time.Time {
	var mutex sync.Mutex
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	return func() time.Time {
		mutex.Lock()
		defer mutex.Unlock()

		now = now.Add(time.Second)
		return now
	}
}

// storedFiles lists the artifacts currently held by the gateway.
func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(f.gateway.BaseDir())
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func ptr[T any](v T) *T {
	return &v
}

func pdfContent(body string) []byte {
	return []byte("%PDF-1.4\n" + body + "\n%%EOF\n")
}

func jpegContent(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
