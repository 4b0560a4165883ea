package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func newAPI(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestMCPServer_ReadEvents(t *testing.T) {
	ts := newAPI(t, map[string]string{
		"/v1/events": `[{"event_id":"e1","event_type":"scenario_executed","run_id":"run-1","target":"db1"}]`,
	})
	s := NewServer(ts.URL)

	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "pganomaly://events"}}
	result, err := s.handleReadEvents(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadEvents failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 resource content, got %d", len(result))
	}
	content, ok := result[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("Expected TextResourceContents")
	}
	if content.MIMEType != "application/json" || content.URI != "pganomaly://events" {
		t.Errorf("Unexpected content metadata: %+v", content)
	}

	var events []map[string]any
	if err := json.Unmarshal([]byte(content.Text), &events); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if len(events) != 1 || events[0]["target"] != "db1" {
		t.Errorf("Unexpected events: %v", events)
	}
}

func TestMCPServer_ReadStatus(t *testing.T) {
	ts := newAPI(t, map[string]string{
		"/v1/status": `{"targets":[{"target":"db1","phase":"baseline"}]}`,
	})
	s := NewServer(ts.URL)

	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "pganomaly://status"}}
	result, err := s.handleReadStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadStatus failed: %v", err)
	}
	content := result[0].(mcp.TextResourceContents)
	if !strings.Contains(content.Text, `"phase": "baseline"`) {
		t.Errorf("Expected baseline phase in %s", content.Text)
	}
}

func TestMCPServer_GetReport(t *testing.T) {
	ts := newAPI(t, map[string]string{
		"/v1/reports": "run_id,target\nrun-1,db1\n",
	})
	s := NewServer(ts.URL)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "get_report",
			Arguments: map[string]any{"type": "summary", "run_id": "run-1"},
		},
	}
	result, err := s.handleGetReport(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetReport failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", textOf(t, result))
	}
	if got := textOf(t, result); !strings.Contains(got, "run-1,db1") {
		t.Errorf("Unexpected report: %q", got)
	}
}

func TestMCPServer_GetReport_MissingType(t *testing.T) {
	s := NewServer("http://127.0.0.1:1")
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "get_report", Arguments: map[string]any{}}}

	result, err := s.handleGetReport(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetReport failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for missing type")
	}
}

func TestMCPServer_ListRuns(t *testing.T) {
	ts := newAPI(t, map[string]string{
		"/v1/runs": `[{"run_id":"run-1","started":"2026-01-01T10:00:00Z","targets":2,"events":14}]`,
	})
	s := NewServer(ts.URL)

	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "list_runs", Arguments: map[string]any{"limit": 5}}}
	result, err := s.handleListRuns(context.Background(), req)
	if err != nil {
		t.Fatalf("handleListRuns failed: %v", err)
	}
	if got := textOf(t, result); !strings.Contains(got, "run-1") || !strings.Contains(got, "targets 2") {
		t.Errorf("Unexpected run listing: %q", got)
	}
}

func TestMCPServer_Prompt(t *testing.T) {
	s := NewServer("")

	req := mcp.GetPromptRequest{Params: mcp.GetPromptParams{Name: promptName}}
	result, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(result.Messages))
	}

	req.Params.Name = "other"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("Expected error for unknown prompt")
	}
}
