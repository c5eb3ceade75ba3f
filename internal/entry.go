// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/wikisync/internal/ledger"
	"github.com/starford/wikisync/internal/mcpserver"
	"github.com/starford/wikisync/internal/metrics"
	"github.com/starford/wikisync/internal/publish"
	"github.com/starford/wikisync/internal/runner"
	"github.com/starford/wikisync/internal/sse"
	"github.com/starford/wikisync/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured JSON logger and installs it as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// components holds everything a run mode may need. close releases the ledger.
type components struct {
	runner *runner.Runner
	ledger *ledger.DB
	vault  string
	target string
}

func (c *components) close() {
	if c.ledger != nil {
		_ = c.ledger.Close()
	}
}

// build opens the vault, the target and the ledger and wires a runner.
func (a *application) build(logger *slog.Logger, rec *metrics.Recorder, broker *sse.Broker) (*components, error) {
	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("target_path", cfg.Target.Path),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("required_type", cfg.Publish.RequiredType),
		slog.Any("target_tags", cfg.Publish.TargetTags),
		slog.String("log_level", cfg.App.LogLevel.String()))

	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault storage: %w", err)
	}

	if err := os.MkdirAll(cfg.Target.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}
	target, err := storage.NewFS(cfg.Target.Path)
	if err != nil {
		return nil, fmt.Errorf("init target storage: %w", err)
	}

	if within(target.Root(), vault.Root()) {
		return nil, fmt.Errorf("target %s must not be inside the vault", cfg.Target.Path)
	}

	c := &components{vault: vault.Root(), target: target.Root()}
	opts := []runner.Option{runner.WithLogger(logger), runner.WithMetrics(rec)}
	if broker != nil {
		opts = append(opts, runner.WithEvents(broker))
	}
	if cfg.Ledger.Enabled() {
		if dir := filepath.Dir(cfg.Ledger.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger dir: %w", err)
			}
		}
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		c.ledger = db
		opts = append(opts, runner.WithLedger(db))
	}

	syncer := publish.New(vault, target, cfg.Settings(), logger)
	c.runner = runner.New(syncer, target.Root(), opts...)
	return c, nil
}

// Run performs a single sync and returns its result.
func Run(ctx context.Context, opts ...Option) (*runner.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.logger()

	c, err := app.build(logger, nil, nil)
	if err != nil {
		return nil, err
	}
	defer c.close()

	return c.runner.Trigger(ctx, runner.TriggerCLI)
}

// History returns the most recent runs from the ledger.
func History(_ context.Context, limit int, opts ...Option) ([]ledger.RunRow, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	if !app.config.Ledger.Enabled() {
		return nil, fmt.Errorf("ledger is disabled (ledger.path is empty)")
	}
	db, err := ledger.Open(app.config.Ledger.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Runs(limit)
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
// Logs go to the configured log output, which must not be stdout.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := app.build(logger, nil, nil)
	if err != nil {
		return err
	}
	defer c.close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.runner, app.config.Settings(), app.version).ServeStdio()
}
