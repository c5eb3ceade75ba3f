// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes wikisync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/ledger"
	"github.com/starford/wikisync/internal/publish"
	"github.com/starford/wikisync/internal/runner"
)

// Service is the sync functionality the tools call. *runner.Runner implements it.
type Service interface {
	Trigger(ctx context.Context, trigger string) (*runner.Result, error)
	Runs(limit int) ([]ledger.RunRow, error)
	Preview(rel string) (*publish.Prepared, error)
}

// Server wraps the MCP server with wikisync tools.
type Server struct {
	mcp      *server.MCPServer
	svc      Service
	settings publish.Settings
}

// New creates a new MCP server with all tools registered. settings feed the
// publishing rules resource.
func New(svc Service, settings publish.Settings, version string) *Server {
	s := &Server{svc: svc, settings: settings}

	s.mcp = server.NewMCPServer(
		"wikisync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_vault",
		mcp.WithDescription("Publish all eligible vault notes to the wiki now and return the run summary. "+
			"Fails if another sync is already running."),
	), s.syncVault)

	s.mcp.AddTool(mcp.NewTool("preview_note",
		mcp.WithDescription("Show the wiki Markdown a vault note would be published as, without writing anything."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note (e.g. notes/Trip.md)")),
	), s.previewNote)

	s.mcp.AddTool(mcp.NewTool("check_note",
		mcp.WithDescription("Explain whether a vault note is eligible for publishing and under which wiki file name."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note")),
	), s.checkNote)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent sync runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 10)")),
	), s.listRuns)

	s.mcp.AddResource(
		mcp.NewResource(RulesURI, "Publishing Rules",
			mcp.WithResourceDescription("Which vault notes are published to the wiki and how their links are rewritten."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) syncVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Trigger(ctx, runner.TriggerMCP)
	if err != nil {
		if errors.Is(err, apperr.ErrRunInProgress) {
			return mcp.NewToolResultError("a sync run is already in progress; try again shortly"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(struct {
		Summary  interface{} `json:"summary"`
		Skipped  interface{} `json:"skipped,omitempty"`
		Deleted  []string    `json:"deleted,omitempty"`
		Warnings []string    `json:"warnings,omitempty"`
	}{
		Summary:  runner.Summary(res.RunID, runner.TriggerMCP, res.Report),
		Skipped:  res.Report.Skipped,
		Deleted:  res.Report.Deleted,
		Warnings: res.Report.Warnings,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) prepare(req mcp.CallToolRequest) (*publish.Prepared, *mcp.CallToolResult) {
	path, err := req.RequireString("path")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	p, err := s.svc.Preview(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
		}
		return nil, mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

func (s *Server) previewNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := s.prepare(req)
	if errResult != nil {
		return errResult, nil
	}
	if !p.Eligible {
		return mcp.NewToolResultText(fmt.Sprintf("not published: %s", p.Reason)), nil
	}
	return mcp.NewToolResultText(p.Content), nil
}

func (s *Server) checkNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := s.prepare(req)
	if errResult != nil {
		return errResult, nil
	}
	if !p.Eligible {
		return mcp.NewToolResultText(fmt.Sprintf("%s: not eligible (%s)", p.Path, p.Reason)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: eligible (%s), published as %s with %d reference(s)",
		p.Path, p.Reason, p.Slug, len(p.References))), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.Runs(req.GetInt("limit", 10))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("run history is disabled (no ledger configured)"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	out, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RulesURI,
			MIMEType: "text/markdown",
			Text:     PublishingRules(s.settings),
		},
	}, nil
}
