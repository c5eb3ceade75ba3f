package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/wikisync/internal"
	"github.com/starford/wikisync/internal/tagrules"
	pkgconfig "github.com/starford/wikisync/pkg/config"
)

var version = "dev"

// loadConfig reads the config file (if any) and applies flag overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	if v := cmd.String("target"); v != "" {
		cfg.Target.Path = v
	}
	if err := pkgconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func syncAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.Run(ctx, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if failures := res.Report.Failures(); failures > 0 {
		slog.Warn("some notes could not be published", slog.Int("failed", failures))
	}
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.App.HTTP.Port = int(port)
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func historyAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := internal.History(ctx, int(cmd.Int("limit")), internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		line := fmt.Sprintf("#%d  %s  %-8s %-6s published=%d skipped=%d failed=%d assets=%d deleted=%d warnings=%d",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Trigger, r.Status,
			r.Published, r.Skipped, r.Failed, r.Assets, r.Deleted, r.Warnings)
		if r.Error != "" {
			line += "  error=" + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

func classifyAction(_ context.Context, cmd *cli.Command) error {
	title := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(title) == "" {
		return errors.New("classify: a document title is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rules := tagrules.DefaultRules
	if len(cfg.TagRules) > 0 {
		rules = cfg.TagRules
	}
	fm, err := tagrules.Frontmatter(tagrules.Apply(rules, title))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.Root().Writer, fm)
	return err
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr), internal.WithVersion(version))
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "wikisync",
		Usage:   "Publish tagged Obsidian vault notes to a flat GitHub wiki",
		Version: version,
		Action:  syncAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Obsidian vault directory (overrides vault.path)",
				Sources: cli.EnvVars("OBSIDIAN_VAULT_PATH"),
			},
			&cli.StringFlag{
				Name:    "target",
				Usage:   "Wiki checkout directory (overrides target.path)",
				Sources: cli.EnvVars("GITHUB_WIKI_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Run one sync and exit (default)",
				Action: syncAction,
			},
			{
				Name:   "serve",
				Usage:  "Sync on vault changes and on a schedule, serving the status API",
				Action: serveAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Usage: "HTTP port (overrides app.http.port)"},
				},
			},
			{
				Name:   "history",
				Usage:  "Show recent sync runs",
				Action: historyAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of runs"},
					&cli.BoolFlag{Name: "json", Usage: "Print runs as JSON"},
				},
			},
			{
				Name:      "classify",
				Usage:     "Print the frontmatter the tag rules assign to a document title",
				ArgsUsage: "<title>",
				Action:    classifyAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve sync tools over the Model Context Protocol on stdio",
				Action: mcpAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
