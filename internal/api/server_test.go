package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/folio/internal/auth"
	config "github.com/mwantia/folio/internal/config/server"
	"github.com/mwantia/folio/internal/library"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/mwantia/folio/pkg/log"
	"github.com/mwantia/folio/pkg/storage"
	"github.com/mwantia/folio/pkg/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	server  *httptest.Server
	gateway *storage.LocalGateway
	token   string
}

func newTestServer(t *testing.T) *testServer {
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

	logger := log.NewLoggerServiceWithWriter("test", config.LogServerConfig{Level: "ERROR"}, io.Discard)
	tags := library.NewTagRegistry(s)
	documents := library.NewDocuments(s, gateway, thumbnail.New(thumbnail.DefaultHeight), tags, logger, library.Options{})
	articles := library.NewArticles(s, logger, library.Options{})

	authenticator, err := auth.NewAuthenticator(s, []byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	_, err = authenticator.Provision(ctx, "admin", "correct horse")
	require.NoError(t, err)
	token, _, err := authenticator.Login(ctx, "admin", "correct horse")
	require.NoError(t, err)

	srv := NewServer(Config{MaxUploadSize: 1 << 20}, documents, articles, tags, authenticator, s.Health, logger)
	server := httptest.NewServer(srv.Router())
	t.Cleanup(server.Close)

	return &testServer{server: server, gateway: gateway, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string, authed bool) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) upload(t *testing.T, fields map[string]string, filename string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("document", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return ts.do(t, http.MethodPost, "/api/documents", &body, writer.FormDataContentType(), true)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type documentJSON struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	OriginalFilename string `json:"original_filename"`
	HasImage         bool   `json:"has_image"`
	Tags             []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

func tagNames(document documentJSON) []string {
	names := []string{}
	for _, tag := range document.Tags {
		names = append(names, tag.Name)
	}
	return names
}

var pdf = []byte("%PDF-1.4\nhello\n%%EOF\n")

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", nil, "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMutationsRequireSession(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/articles", strings.NewReader(`{"title":"t","content":"c"}`), "application/json", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/documents/1", nil, "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/auth/me", nil, "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`), "application/json", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"correct horse"}`), "application/json", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "folio_session" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, ts.server.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer me.Body.Close()

	require.Equal(t, http.StatusOK, me.StatusCode)
	principal := decode[auth.Principal](t, me)
	assert.Equal(t, "admin", principal.Username)
}

func TestArticleRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/articles", strings.NewReader(`{"title":"","content":"c"}`), "application/json", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/articles", strings.NewReader(`{"title":"Hello","content":"World"}`), "application/json", true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[struct {
		ID uint `json:"id"`
	}](t, resp)

	resp = ts.do(t, http.MethodGet, "/api/articles", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 1)

	path := "/api/articles/" + itoa(created.ID)
	resp = ts.do(t, http.MethodPut, path, strings.NewReader(`{"title":"Hello again","content":"World"}`), "application/json", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, path, nil, "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, path, nil, "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/articles/abc", nil, "", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadAndDownloadDocument(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t, map[string]string{"title": "Report", "tags": "Finance, finance, FINANCE", "year": "n/a"}, "Report.PDF", pdf)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	document := decode[documentJSON](t, resp)
	assert.Equal(t, "Report", document.Title)
	assert.Equal(t, []string{"finance"}, tagNames(document))
	assert.False(t, document.HasImage)

	download := ts.do(t, http.MethodGet, "/api/documents/"+itoa(document.ID)+"/download", nil, "", false)
	require.Equal(t, http.StatusOK, download.StatusCode)
	assert.Equal(t, "application/pdf", download.Header.Get("Content-Type"))
	assert.Contains(t, download.Header.Get("Content-Disposition"), "Report.PDF")

	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	image := ts.do(t, http.MethodGet, "/api/documents/"+itoa(document.ID)+"/image", nil, "", false)
	assert.Equal(t, http.StatusNotFound, image.StatusCode)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t, nil, "setup.exe", []byte("MZ"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, "document", body.Field)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t, nil, "big.txt", bytes.Repeat([]byte("a"), (1<<20)+(64<<10)))
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, resp.StatusCode)

	entries, err := os.ReadDir(ts.gateway.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListDocumentsByTag(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusCreated, ts.upload(t, map[string]string{"tags": "finance"}, "a.pdf", pdf).StatusCode)
	require.Equal(t, http.StatusCreated, ts.upload(t, map[string]string{"tags": "legal"}, "b.pdf", pdf).StatusCode)

	resp := ts.do(t, http.MethodGet, "/api/documents?tag=Finance", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]documentJSON](t, resp)
	require.Len(t, listed, 1)
	assert.Equal(t, "a.pdf", listed[0].OriginalFilename)

	resp = ts.do(t, http.MethodGet, "/api/documents?tag=nonexistent", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]documentJSON](t, resp))

	resp = ts.do(t, http.MethodGet, "/api/tags", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 2)
}

func TestUpdateDocumentKeepsAbsentFields(t *testing.T) {
	ts := newTestServer(t)

	created := decode[documentJSON](t, ts.upload(t, map[string]string{"title": "Original", "tags": "finance"}, "a.pdf", pdf))
	path := "/api/documents/" + itoa(created.ID)

	form := url.Values{"description": {"Added later"}}
	resp := ts.do(t, http.MethodPut, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[documentJSON](t, resp)
	assert.Equal(t, "Original", updated.Title)
	assert.Equal(t, []string{"finance"}, tagNames(updated))

	form = url.Values{"tags": {""}}
	resp = ts.do(t, http.MethodPut, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, tagNames(decode[documentJSON](t, resp)))
}

func TestDeleteAndMissingFile(t *testing.T) {
	ts := newTestServer(t)

	first := decode[documentJSON](t, ts.upload(t, nil, "a.pdf", pdf))
	second := decode[documentJSON](t, ts.upload(t, nil, "b.pdf", pdf))

	resp := ts.do(t, http.MethodDelete, "/api/documents/"+itoa(first.ID), nil, "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/documents/"+itoa(first.ID)+"/download", nil, "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	entries, err := os.ReadDir(ts.gateway.BaseDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, os.Remove(filepath.Join(ts.gateway.BaseDir(), entries[0].Name())))

	resp = ts.do(t, http.MethodGet, "/api/documents/"+itoa(second.ID)+"/download", nil, "", false)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusCreated, ts.upload(t, map[string]string{"title": "Budget plan"}, "a.pdf", pdf).StatusCode)
	resp := ts.do(t, http.MethodPost, "/api/articles", strings.NewReader(`{"title":"Budget news","content":"c"}`), "application/json", true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/search?q=BUDGET", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[map[string]json.RawMessage](t, resp)
	assert.Contains(t, all, "articles")
	assert.Contains(t, all, "documents")

	resp = ts.do(t, http.MethodGet, "/api/search?q=budget&type=documents", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	documentsOnly := decode[map[string]json.RawMessage](t, resp)
	assert.NotContains(t, documentsOnly, "articles")
	assert.Contains(t, documentsOnly, "documents")

	resp = ts.do(t, http.MethodGet, "/api/search?q=budget&type=pictures", nil, "", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/search?q=", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[struct {
		Articles  []any `json:"articles"`
		Documents []any `json:"documents"`
	}](t, resp)
	assert.Empty(t, empty.Articles)
	assert.Empty(t, empty.Documents)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
