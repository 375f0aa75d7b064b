package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mwantia/folio/internal/auth"
	"github.com/mwantia/folio/internal/library"
	"github.com/mwantia/folio/pkg/log"
)

// Config holds transport settings resolved from the agent configuration.
type Config struct {
	Workers        int
	Backlog        int
	BacklogTimeout time.Duration
	MaxUploadSize  int64
	CORSOrigins    []string
	CookieName     string
	CookieSecure   bool
}

// Server exposes the library over HTTP.
type Server struct {
	cfg       Config
	documents *library.Documents
	articles  *library.Articles
	tags      *library.TagRegistry
	auth      *auth.Authenticator
	health    func(ctx context.Context) error
	log       log.LoggerService
}

func NewServer(cfg Config, documents *library.Documents, articles *library.Articles, tags *library.TagRegistry, authenticator *auth.Authenticator, health func(ctx context.Context) error, logger log.LoggerService) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 1000
	}
	if cfg.BacklogTimeout <= 0 {
		cfg.BacklogTimeout = 120 * time.Second
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 32 << 20
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "folio_session"
	}

	return &Server{
		cfg:       cfg,
		documents: documents,
		articles:  articles,
		tags:      tags,
		auth:      authenticator,
		health:    health,
		log:       logger,
	}
}

// Router builds the chi router with all routes and middlewares.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if origins := s.origins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.ThrottleBacklog(s.cfg.Workers, s.cfg.Backlog, s.cfg.BacklogTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.With(s.requireAuth).Get("/me", s.handleMe)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Get("/{id}", s.handleGetArticle)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateArticle)
				r.Put("/{id}", s.handleUpdateArticle)
				r.Delete("/{id}", s.handleDeleteArticle)
			})
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Get("/{id}", s.handleGetDocument)
			r.Get("/{id}/download", s.handleDownloadDocument)
			r.Get("/{id}/image", s.handleDocumentImage)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleUploadDocument)
				r.Put("/{id}", s.handleUpdateDocument)
				r.Delete("/{id}", s.handleDeleteDocument)
			})
		})

		r.Get("/tags", s.handleListTags)
		r.Get("/search", s.handleSearch)
	})

	return r
}

func (s *Server) origins() []string {
	var origins []string
	for _, origin := range s.cfg.CORSOrigins {
		if o := strings.TrimRight(strings.TrimSpace(origin), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("Health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
