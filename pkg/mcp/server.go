package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/pganomaly/pkg/client"
)

const (
	promptName    = "pganomaly-analyst"
	serverVersion = "1.0.0"
)

// Server exposes the pganomaly API over the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance reading from the API at apiURL.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("pganomaly", serverVersion),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"pganomaly://events",
		"Demo Event History",
		mcp.WithResourceDescription("Recent demo events: targets started and skipped, scenario executions, cleanup results"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadEvents)

	s.mcpServer.AddResource(mcp.NewResource(
		"pganomaly://status",
		"Live Target Status",
		mcp.WithResourceDescription("Current phase, round and counters of every target in the running demo"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStatus)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"get_report",
		mcp.WithDescription("Fetch a CSV report of recorded demo runs."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Report type: scenarios, summary or events")),
		mcp.WithString("run_id", mcp.Description("Restrict to one run")),
		mcp.WithString("target", mcp.Description("Restrict to one database server")),
	), s.handleGetReport)

	s.mcpServer.AddTool(mcp.NewTool(
		"list_runs",
		mcp.WithDescription("List recorded demo runs, most recent first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 10)")),
	), s.handleListRuns)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains how pganomaly demo runs map to expected anomaly detections"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadEvents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := s.apiClient.GetEvents(ctx, client.EventsOptions{Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	return jsonContents(request.Params.URI, events)
}

func (s *Server) handleReadStatus(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	statuses, ok, err := s.apiClient.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}
	if !ok {
		statuses = []client.TargetStatus{}
	}
	return jsonContents(request.Params.URI, statuses)
}

func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := client.ReportOptions{
		Type:   mcp.ParseString(request, "type", ""),
		RunID:  mcp.ParseString(request, "run_id", ""),
		Target: mcp.ParseString(request, "target", ""),
	}
	if opts.Type == "" {
		return mcp.NewToolResultError("type is required"), nil
	}

	data, err := s.apiClient.GetReport(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(mcp.ParseFloat64(request, "limit", 10))

	runs, err := s.apiClient.GetRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("No runs recorded."), nil
	}

	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  started %s  targets %d  events %d\n",
			r.RunID, r.Started.Format("2006-01-02 15:04:05"), r.Targets, r.Events)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if request.Params.Name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", request.Params.Name)
	}

	promptText := `You are helping evaluate a PostgreSQL anomaly detection product with pganomaly.

pganomaly runs a demo against one or more database servers:
- Baseline: low-rate "normal" background traffic (selects, transactions, analytical queries, injected errors).
- Rounds: every anomaly scenario script runs once per round, in order, separated by a spacing interval,
  until the total duration is reached. Each scenario should trigger one detection.
- Cleanup: the cleanup script removes objects created by the scenarios.

Use the pganomaly://status resource to see what a target is doing now and pganomaly://events for history.
Use get_report with type "scenarios" to line detections up against scenario execution times,
and type "summary" for per-target totals. A failed or aborted scenario may explain a missing detection.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
