// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/bryclee/taskcheck/internal/api"
	"github.com/bryclee/taskcheck/internal/bus"
	"github.com/bryclee/taskcheck/internal/command"
	"github.com/bryclee/taskcheck/internal/completion"
	"github.com/bryclee/taskcheck/internal/graph"
	"github.com/bryclee/taskcheck/internal/graphstore"
	"github.com/bryclee/taskcheck/internal/index"
	"github.com/bryclee/taskcheck/internal/mcpserver"
	"github.com/bryclee/taskcheck/internal/query"
	"github.com/bryclee/taskcheck/internal/settings"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP mode logs to stderr so
	// stdout stays clean for the stdio transport.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("graph_path", cfg.Graph.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("settings_path", cfg.Settings.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure graph directory exists.
	if err := os.MkdirAll(cfg.Graph.Path, 0o755); err != nil {
		return fmt.Errorf("create graph dir: %w", err)
	}

	// Initialize graph storage.
	store, err := graphstore.NewFS(cfg.Graph.Path)
	if err != nil {
		return fmt.Errorf("init graph storage: %w", err)
	}

	// Initialize SQLite block index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := graph.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Plugin settings: load now, hot-reload on file change.
	settingsStore := settings.NewStore(cfg.Settings.Path, logger)

	// Graph service: block reads, updates, inserts, property queries.
	svc := graph.NewService(store, db, cfg.Graph.PreferredDateFormat, logger)

	// Editor commands.
	weekly := query.NewWeekly(svc, svc, svc, settingsStore.Current, logger)
	registry := command.NewRegistry()
	if err := registry.Register(command.Command{
		Name:  query.CommandName,
		Label: query.CommandLabel,
		Handler: func(ctx context.Context, inv command.Invocation) error {
			return weekly.Run(ctx, inv.BlockID)
		},
	}); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}

	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(db, registry).ServeStdio()
	}

	// Completion reactor: stamps and strips completion properties as
	// task markers change.
	reactor := completion.New(svc, svc, logger, settingsStore.Current())
	settingsStore.Subscribe(reactor.ApplySettings)

	// Event broker: fans page change batches out to the reactor and to
	// SSE clients.
	broker := bus.NewBroker(logger)
	defer broker.Close()
	broker.OnChange(reactor.HandleBatch)

	// Build API router.
	apiRouter := api.NewRouter(svc, registry, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start graph watcher feeding the broker.
	g.Go(func() error {
		return graph.Watch(gCtx, db, store, cfg.Graph.Path, logger, broker.Publish)
	})

	// Start settings watcher.
	g.Go(func() error {
		return settingsStore.Watch(gCtx, logger)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
