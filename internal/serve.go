package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/wikisync/internal/api"
	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/metrics"
	"github.com/starford/wikisync/internal/runner"
	"github.com/starford/wikisync/internal/schedule"
	"github.com/starford/wikisync/internal/sse"
	"github.com/starford/wikisync/internal/watch"
)

// Serve runs an initial sync, then keeps the target up to date from vault
// changes and a periodic schedule while serving the status API.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	broker := sse.NewBroker(cfg.Watch.Debounce)
	defer broker.Close()
	rec := metrics.NewRecorder(nil)

	c, err := app.build(logger, rec, broker)
	if err != nil {
		return err
	}
	defer c.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Run failures are logged and recorded by the runner.
	trigger := func(cause string) {
		if _, err := c.runner.Trigger(gCtx, cause); errors.Is(err, apperr.ErrRunInProgress) {
			logger.Info("sync skipped, run in progress", slog.String("trigger", cause))
		}
	}

	trigger(runner.TriggerStartup)

	// Start file watcher.
	ignore := watchIgnore(c.vault, cfg.Ledger.Path)
	g.Go(func() error {
		return watch.Watch(gCtx, c.vault, cfg.Watch.Debounce, logger, ignore, func(path string) {
			broker.PublishVaultChange(path)
			trigger(runner.TriggerWatch)
		})
	})

	// Periodic runs catch changes the watcher missed.
	var sched *schedule.Scheduler
	if cfg.Watch.Interval > 0 {
		sched, err = schedule.New(logger)
		if err != nil {
			return err
		}
		if _, err := sched.Every("periodic-sync", cfg.Watch.Interval, func() { trigger(runner.TriggerSchedule) }); err != nil {
			return err
		}
		sched.Start()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rec.Handler())

	r.Mount("/api", api.NewRouter(c.runner, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, logger))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		if sched != nil {
			if err := sched.Stop(); err != nil {
				logger.Error("scheduler shutdown error", slog.String("error", err.Error()))
			}
		}

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Returning an error cancels gCtx so the watcher stops too.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// watchIgnore keeps the watcher away from the ledger database and its WAL
// side files when they live inside the vault.
func watchIgnore(vault, ledgerPath string) func(string) bool {
	if ledgerPath == "" {
		return nil
	}
	abs, err := filepath.Abs(ledgerPath)
	if err != nil || !within(abs, vault) {
		return nil
	}
	return func(p string) bool {
		return strings.HasPrefix(p, abs)
	}
}

// within reports whether p is root or below it.
func within(p, root string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
