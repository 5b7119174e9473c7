// Package app wires configuration, the load-order engine and the HTTP
// surface into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"edfi-dms/internal/api"
	"edfi-dms/internal/apischema"
	"edfi-dms/internal/config"
	"edfi-dms/internal/middleware"
	"edfi-dms/internal/service/loadorder"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	holder   *loadorder.Holder
	reloader *Reloader
	server   *http.Server
}

// New builds the engine from the configuration, publishes the first snapshot
// and prepares the HTTP server. A schema that cannot be loaded or leveled is
// fatal at startup.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine, err := NewEngine(cfg, logger.With("component", "engine"))
	if err != nil {
		return nil, err
	}

	holder := &loadorder.Holder{}
	reloader := NewReloader(Source{
		Paths:   cfg.SchemaPaths,
		Options: apischema.LoadOptions{Strict: cfg.StrictSchema},
	}, engine, holder, logger.With("component", "reloader"))

	if _, err := reloader.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial load order: %w", err)
	}

	handler := api.NewHandler(holder, reloader, logger.With("component", "api"))
	router := api.NewRouter(handler, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ReloadRateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Logger: logger.With("component", "http"),
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		holder:   holder,
		reloader: reloader,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// NewEngine creates the load-order engine with the configuration file's
// authorization table and ordering rules.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*loadorder.Engine, error) {
	auths, err := cfg.Engine.Authorizations()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Engine.OrderingRules()
	if err != nil {
		return nil, err
	}
	return loadorder.NewEngine(loadorder.EngineConfig{
		Authorizations: auths,
		Ordering:       rules,
		Logger:         logger,
	}), nil
}

// Holder exposes the published snapshot.
func (a *App) Holder() *loadorder.Holder { return a.holder }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves HTTP and runs the configured reload triggers until ctx is
// canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	var watcher *Watcher
	if a.cfg.SchemaWatch {
		w, err := NewWatcher(a.cfg.SchemaPaths, a.cfg.WatchDebounce, a.logger.With("component", "watcher"))
		if err != nil {
			return err
		}
		watcher = w
	}
	var scheduler *cron.Cron
	if a.cfg.SchemaReloadCron != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(a.cfg.SchemaReloadCron, func() { a.reloadFunc("cron")(ctx) }); err != nil {
			if watcher != nil {
				_ = watcher.w.Close()
			}
			return fmt.Errorf("SCHEMA_RELOAD_CRON %q: %w", a.cfg.SchemaReloadCron, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP API listening", "addr", a.cfg.ListenAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx, a.reloadFunc("watch"))
		})
	}
	if scheduler != nil {
		scheduler.Start()
		a.logger.Info("schema reload scheduled", "schedule", a.cfg.SchemaReloadCron)
		g.Go(func() error {
			<-gctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
	}

	return g.Wait()
}

// reloadFunc returns a reload trigger that logs failures and keeps serving
// the previous snapshot.
func (a *App) reloadFunc(trigger string) func(context.Context) {
	return func(ctx context.Context) {
		res, err := a.reloader.Reload(ctx)
		if err != nil {
			a.logger.Warn("schema reload failed", "trigger", trigger, "error", err)
			return
		}
		a.logger.Debug("schema reload finished", "trigger", trigger, "reloaded", res.Reloaded)
	}
}
