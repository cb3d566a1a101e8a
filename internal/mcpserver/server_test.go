package mcpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/grovelabs/grove-coder/internal/config"
	"github.com/grovelabs/grove-coder/internal/mcpserver"
	"github.com/grovelabs/grove-coder/internal/models"
	"github.com/grovelabs/grove-coder/internal/services"
)

// newTestServer builds a full stack: sqlite ledger, fake OpenRouter
// endpoint, broker, MCP server.
func newTestServer(t *testing.T, limits config.CostLimitsConfig, handler http.HandlerFunc) (*mcpserver.Server, *services.LedgerService) {
	t.Helper()

	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	ledger := services.NewLedgerService(db)

	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	client, err := services.NewDeepSeekClient(&config.OpenRouterConfig{
		APIKey:             "test-key",
		Model:              "deepseek/deepseek-v3.2",
		BaseURL:            upstream.URL,
		RequireZDR:         true,
		PreferredProviders: []string{"Together", "Fireworks"},
	})
	if err != nil {
		t.Fatalf("NewDeepSeekClient failed: %v", err)
	}

	broker := services.NewBroker(ledger, client, limits)
	t.Cleanup(broker.Close)

	return mcpserver.New(broker), ledger
}

func completionHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
			"usage": map[string]any{
				"prompt_tokens":     500,
				"completion_tokens": 300,
			},
		}
		json.NewEncoder(w).Encode(body)
	}
}

func callTool(t *testing.T, s *mcpserver.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()

	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("tool %q not registered", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestToolRegistration(t *testing.T) {
	s, _ := newTestServer(t, config.CostLimitsConfig{DailyUSD: 10, MonthlyUSD: 50}, completionHandler(`{}`))

	tools := s.MCPServer().ListTools()
	if len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools))
	}

	for _, name := range []string{"generate_code", "edit_code", "review_code", "get_cost_report"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestToolSchemas_RequiredFields(t *testing.T) {
	s, _ := newTestServer(t, config.CostLimitsConfig{DailyUSD: 10, MonthlyUSD: 50}, completionHandler(`{}`))
	tools := s.MCPServer().ListTools()

	want := map[string][]string{
		"generate_code":   {"task_description", "language"},
		"edit_code":       {"original_code", "change_request", "language"},
		"review_code":     {"code"},
		"get_cost_report": {"period"},
	}

	for name, fields := range want {
		tool, ok := tools[name]
		if !ok {
			t.Errorf("tool %q not registered", name)
			continue
		}
		required := make(map[string]bool)
		for _, f := range tool.Tool.InputSchema.Required {
			required[f] = true
		}
		for _, f := range fields {
			if !required[f] {
				t.Errorf("%s: field %q should be required, got %v", name, f, tool.Tool.InputSchema.Required)
			}
		}
		if len(required) != len(fields) {
			t.Errorf("%s: required = %v, expected exactly %v", name, tool.Tool.InputSchema.Required, fields)
		}
	}
}

func TestGenerateCodeTool(t *testing.T) {
	s, ledger := newTestServer(t,
		config.CostLimitsConfig{DailyUSD: 10, MonthlyUSD: 50},
		completionHandler(`{"code":"print('hi')","explanation":"Prints hi."}`),
	)

	result := callTool(t, s, "generate_code", map[string]any{
		"task_description": "print hi",
		"language":         "python",
		"file_path":        "hi.py",
	})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var payload struct {
		Code        string   `json:"code"`
		Explanation string   `json:"explanation"`
		Suggestions []string `json:"suggestions"`
		CostUSD     float64  `json:"cost_usd"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if payload.Code != "print('hi')" {
		t.Errorf("code = %q", payload.Code)
	}
	if payload.Suggestions == nil {
		t.Error("suggestions should marshal as an empty array, not null")
	}
	if payload.CostUSD <= 0 {
		t.Errorf("cost_usd = %v, expected > 0", payload.CostUSD)
	}

	report, err := ledger.Report(services.WindowAll, "")
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.TotalRequests != 1 {
		t.Errorf("ledger has %d records, expected 1", report.TotalRequests)
	}
}

func TestCostReportTool(t *testing.T) {
	s, ledger := newTestServer(t, config.CostLimitsConfig{DailyUSD: 10, MonthlyUSD: 50}, completionHandler(`{}`))

	if err := ledger.Append(context.Background(), "generate_code", 0.25, 0, 0, ""); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	result := callTool(t, s, "get_cost_report", map[string]any{"period": "all"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var report services.SpendReport
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if report.TotalRequests != 1 {
		t.Errorf("total_requests = %d", report.TotalRequests)
	}
	if report.TotalCostUSD != 0.25 {
		t.Errorf("total_cost_usd = %v", report.TotalCostUSD)
	}
}

func TestLimitDenialPayload(t *testing.T) {
	s, ledger := newTestServer(t, config.CostLimitsConfig{DailyUSD: 1, MonthlyUSD: 50}, completionHandler(`{}`))

	if err := ledger.Append(context.Background(), "generate_code", 1.5, 0, 0, ""); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	result := callTool(t, s, "generate_code", map[string]any{
		"task_description": "t",
	})
	if !result.IsError {
		t.Fatal("expected error result for denied call")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("denial payload is not JSON: %v", err)
	}
	if payload["error"] != "Daily cost limit exceeded" {
		t.Errorf("error = %v", payload["error"])
	}
	if payload["limit_usd"] != 1.0 {
		t.Errorf("limit_usd = %v", payload["limit_usd"])
	}
}

func TestInvalidPeriodPayload(t *testing.T) {
	s, _ := newTestServer(t, config.CostLimitsConfig{DailyUSD: 10, MonthlyUSD: 50}, completionHandler(`{}`))

	result := callTool(t, s, "get_cost_report", map[string]any{"period": "decade"})
	if !result.IsError {
		t.Fatal("expected error result for invalid period")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("error payload is not JSON: %v", err)
	}
	if _, ok := payload["error"]; !ok {
		t.Errorf("payload missing error key: %v", payload)
	}
}
