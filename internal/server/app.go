// Package server wires the watcher's dependencies and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/surugaya-watcher/internal/api"
	"github.com/JakeFAU/surugaya-watcher/internal/clock/system"
	"github.com/JakeFAU/surugaya-watcher/internal/config"
	"github.com/JakeFAU/surugaya-watcher/internal/fetcher/subprocess"
	"github.com/JakeFAU/surugaya-watcher/internal/hash/sha256"
	"github.com/JakeFAU/surugaya-watcher/internal/id/uuid"
	"github.com/JakeFAU/surugaya-watcher/internal/logging"
	"github.com/JakeFAU/surugaya-watcher/internal/metrics"
	"github.com/JakeFAU/surugaya-watcher/internal/notifier/webhook"
	"github.com/JakeFAU/surugaya-watcher/internal/scheduler"
	"github.com/JakeFAU/surugaya-watcher/internal/state"
	gcsstorage "github.com/JakeFAU/surugaya-watcher/internal/storage/gcs"
	localstorage "github.com/JakeFAU/surugaya-watcher/internal/storage/local"
	memorystorage "github.com/JakeFAU/surugaya-watcher/internal/storage/memory"
	pgstore "github.com/JakeFAU/surugaya-watcher/internal/storage/postgres"
	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
	storage   *storage.Client
	pgStore   *pgstore.BlobStore
}

// Build creates the application's dependencies. State storage that cannot be prepared is fatal.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("topics", len(cfg.Watch.Topics)),
		zap.Duration("interval", cfg.Interval()),
		zap.String("state_backend", cfg.State.Backend),
	)
	metrics.Init()

	blobs, err := setupStorage(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	store, err := state.New(blobs, sha256.New())
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("state store init failed: %w", err)
	}

	fetcher, err := subprocess.New(subprocess.Config{
		Origin:           cfg.Catalog.Origin,
		SearchPath:       cfg.Catalog.SearchPath,
		Command:          cfg.Crawler.Command,
		Args:             cfg.Crawler.Args,
		WorkDir:          cfg.Crawler.WorkDir,
		VirtualEnv:       cfg.Crawler.VirtualEnv,
		Env:              cfg.Crawler.Env,
		InheritParentEnv: cfg.Crawler.InheritParentEnv,
		Timeout:          time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second,
		MinInterval:      time.Duration(cfg.Crawler.MinIntervalMs) * time.Millisecond,
		StderrTailBytes:  cfg.Crawler.StderrTailBytes,
	}, logger.Named("fetcher"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}

	clock := system.New()
	notifier, err := webhook.New(webhook.Config{
		URL:            cfg.Webhook.URL,
		BatchSize:      cfg.Webhook.BatchSize,
		Timeout:        time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
		PostsPerSecond: cfg.Webhook.PostsPerSecond,
		Branding: webhook.Branding{
			Name:    cfg.Catalog.SiteName,
			URL:     cfg.Catalog.SiteURL,
			IconURL: cfg.Catalog.SiteIcon,
		},
	}, nil, clock, logger)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("notifier init failed: %w", err)
	}

	app.scheduler, err = scheduler.New(scheduler.Config{
		Topics:     cfg.Watch.Topics,
		Interval:   cfg.Interval(),
		RunOnStart: cfg.Watch.RunOnStart,
	}, fetcher, store, notifier, clock, uuid.NewUUIDGenerator(), logger)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("scheduler init failed: %w", err)
	}
	return app, nil
}

func setupStorage(ctx context.Context, app *App) (watch.BlobStore, error) {
	st := app.cfg.State
	switch st.Backend {
	case "gcs":
		app.logger.Info("using GCS state backend")
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: st.GCS.Bucket, Prefix: st.GCS.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS state backend", zap.String("bucket", st.GCS.Bucket), zap.String("prefix", st.GCS.Prefix))
		return blobs, nil
	case "postgres":
		app.logger.Info("using Postgres state backend")
		blobs, err := pgstore.NewBlobStore(ctx, pgstore.Config{
			DSN:             st.Postgres.DSN,
			Table:           st.Postgres.Table,
			MaxConns:        st.Postgres.MaxConns,
			MaxConnLifetime: st.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres blob store init failed: %w", err)
		}
		app.pgStore = blobs
		return blobs, nil
	case "local":
		app.logger.Info("using local state backend")
		blobs, err := localstorage.New(localstorage.Config{BaseDir: st.Dir})
		if err != nil {
			return nil, fmt.Errorf("%w: local state dir: %w", watch.ErrStorage, err)
		}
		app.logger.Debug("local state backend", zap.String("path", st.Dir))
		return blobs, nil
	case "memory":
		app.logger.Warn("using in-memory state backend; state is lost on exit")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", watch.ErrInvalidConfig, st.Backend)
	}
}

// Scheduler exposes the wired scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Run starts the watcher and blocks until the context is canceled or a termination
// signal arrives. A signal-triggered shutdown is not an error.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.logger.Info("application started")

	var srv *http.Server
	serveErr := make(chan error, 1)
	if a.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           api.NewServer(ctx, a.scheduler, a.logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
				serveErr <- err
				stop()
			}
		}()
	}

	runErr := a.scheduler.Run(ctx)
	a.logger.Info("shutdown initiated")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}
	a.scheduler.Wait()
	a.Close()
	if runErr != nil {
		return fmt.Errorf("scheduler: %w", runErr)
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	return nil
}

// Close releases storage clients and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

func (a *App) closeInfrastructure() {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.pgStore != nil {
		a.pgStore.Close()
		a.pgStore = nil
	}
}
