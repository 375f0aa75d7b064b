package agent

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/folio/internal/api"
	"github.com/mwantia/folio/internal/auth"
	config "github.com/mwantia/folio/internal/config/server"
	"github.com/mwantia/folio/internal/library"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/mwantia/folio/pkg/log"
	"github.com/mwantia/folio/pkg/storage"
	"github.com/mwantia/folio/pkg/thumbnail"
)

type FolioAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	store  *store.GormStore
	server *http.Server
}

func NewAgent(cfg *config.BaseServerConfig) *FolioAgent {
	return &FolioAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("folio", cfg.Log),
	}
}

// OpenStore opens the configured metadata store, verifies the connection
// and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.MetadataServerConfig) (*store.GormStore, error) {
	var s *store.GormStore
	var err error

	level := store.ParseLogLevel(cfg.LogLevel)
	switch cfg.Type {
	case "sqlite":
		s, err = store.NewSQLiteStore(store.SQLiteConfig{
			Path:     cfg.SQLite.Path,
			LogLevel: level,
		})
	case "postgres":
		s, err = store.NewPostgresStore(store.PostgresConfig{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			LogLevel:     level,
		})
	default:
		return nil, fmt.Errorf("unsupported metadata type '%s'", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Connect(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to metadata store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to migrate metadata store: %w", err)
	}

	return s, nil
}

func (fa *FolioAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	fa.sc.AddTagProcessor(log.NewLoggerTagProcessor())

	fa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[*log.LoggerServiceImpl](fa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(fa.log)))

	fa.log.Debug("Opening '%s' metadata store...", fa.cfg.Metadata.Type)
	s, err := OpenStore(ctx, fa.cfg.Metadata)
	if err != nil {
		return err
	}
	fa.store = s

	fa.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[*store.GormStore](fa.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(s)))

	gateway, err := storage.NewLocalGateway(fa.cfg.Storage.Path)
	if err != nil {
		return err
	}

	fa.log.Debug("Registering 'Gateway' at '%s'...", gateway.BaseDir())
	errs.Add(container.Register[*storage.LocalGateway](fa.sc,
		container.With[storage.Gateway](),
		container.WithInstance(gateway)))

	errs.Add(container.Register[*thumbnail.Deriver](fa.sc,
		container.WithInstance(thumbnail.New(fa.cfg.Storage.ThumbnailHeight))))
	errs.Add(container.Register[library.Options](fa.sc,
		container.WithInstance(library.Options{
			StorageTimeout: config.Duration(fa.cfg.Storage.Timeout, 30*time.Second),
		})))

	fa.log.Debug("Registering library repositories...")
	errs.Add(container.Register[*library.TagRegistry](fa.sc, container.AsSingleton()))
	errs.Add(container.Register[*library.Documents](fa.sc, container.AsSingleton()))
	errs.Add(container.Register[*library.Articles](fa.sc, container.AsSingleton()))

	errs.Add(container.Register[*auth.Authenticator](fa.sc,
		container.AsSingleton(),
		container.AsFactory(func(ctx context.Context, sc *container.ServiceContainer) (any, error) {
			metadata, err := container.Resolve[store.MetadataStore](ctx, sc)
			if err != nil {
				return nil, err
			}
			return auth.NewAuthenticator(metadata, fa.secret(), config.Duration(fa.cfg.Auth.TokenTTL, auth.DefaultTokenTTL))
		})))

	if err := errs.Errors(); err != nil {
		return err
	}

	return fa.setupServer(ctx)
}

// setupServer resolves the registered services and builds the HTTP server.
// Tags resolve first so documents share the cached registry.
func (fa *FolioAgent) setupServer(ctx context.Context) error {
	var tags *library.TagRegistry
	var documents *library.Documents
	var articles *library.Articles
	var authenticator *auth.Authenticator
	var metadata store.MetadataStore

	errs := container.Errors{}
	errs.Add(container.ResolveAs(ctx, fa.sc, &tags))
	errs.Add(container.ResolveAs(ctx, fa.sc, &documents))
	errs.Add(container.ResolveAs(ctx, fa.sc, &articles))
	errs.Add(container.ResolveAs(ctx, fa.sc, &authenticator))
	errs.Add(container.ResolveAs(ctx, fa.sc, &metadata))
	if err := errs.Errors(); err != nil {
		return fmt.Errorf("failed to resolve services: %w", err)
	}

	server := api.NewServer(api.Config{
		Workers:        fa.cfg.HTTP.Workers,
		Backlog:        fa.cfg.HTTP.Backlog,
		BacklogTimeout: config.Duration(fa.cfg.HTTP.BacklogTimeout, 120*time.Second),
		MaxUploadSize:  fa.cfg.HTTP.MaxUploadSize,
		CORSOrigins:    fa.cfg.HTTP.CORSOrigins,
		CookieName:     fa.cfg.Auth.CookieName,
		CookieSecure:   fa.cfg.Auth.CookieSecure,
	}, documents, articles, tags, authenticator, metadata.Health, fa.log.Named("api"))

	fa.server = &http.Server{
		Addr:              fa.cfg.HTTP.Address,
		Handler:           server.Router(),
		ReadHeaderTimeout: config.Duration(fa.cfg.HTTP.ReadHeaderTimeout, 10*time.Second),
	}

	return nil
}

// secret returns the configured session secret. Without one a random
// secret is generated and sessions do not survive a restart.
func (fa *FolioAgent) secret() []byte {
	if fa.cfg.Auth.Secret != "" {
		return []byte(fa.cfg.Auth.Secret)
	}

	fa.log.Warn("No 'auth.secret' configured, sessions will be invalidated on restart")
	secret := make([]byte, 32)
	rand.Read(secret)
	return secret
}

func (fa *FolioAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fa.mutex.Lock()

	if err := fa.setupServices(ctx); err != nil {
		fa.mutex.Unlock()
		fa.close()
		return err
	}

	fa.mutex.Unlock()

	serveErr := make(chan error, 1)
	fa.wait.Add(1)
	go func() {
		defer fa.wait.Done()

		fa.log.Info("Listening on '%s'", fa.server.Addr)
		if err := fa.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		fa.log.Info("Shutting down...")
	case err = <-serveErr:
		fa.log.Error("HTTP server failed: %v", err)
	}

	timeout := config.Duration(fa.cfg.ShutdownTimeout, 60*time.Second)
	shutdown, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	if shutdownErr := fa.server.Shutdown(shutdown); shutdownErr != nil {
		fa.log.Warn("Failed to drain HTTP connections: %v", shutdownErr)
	}

	if cleanupErr := fa.sc.Cleanup(shutdown); cleanupErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to complete service container cleanup: %w", cleanupErr))
	}

	fa.wait.Wait()
	fa.close()
	return err
}

func (fa *FolioAgent) close() {
	fa.mutex.Lock()
	defer fa.mutex.Unlock()

	if fa.store != nil {
		if err := fa.store.Close(); err != nil {
			fa.log.Warn("Failed to close metadata store: %v", err)
		}
		fa.store = nil
	}
}
