package mcpserver

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/grovelabs/grove-coder/internal/services"
)

// registerTools registers the coding tools and the cost report on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.generateCodeTool(),
		s.editCodeTool(),
		s.reviewCodeTool(),
		s.costReportTool(),
	)
}

func (s *Server) generateCodeTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(string(services.OpGenerate),
		mcplib.WithDescription("Generate code from a task description using the DeepSeek worker model"),
		mcplib.WithString("task_description",
			mcplib.Required(),
			mcplib.Description("What the code should do"),
		),
		mcplib.WithString("language",
			mcplib.Required(),
			mcplib.Description("Target programming language"),
		),
		mcplib.WithString("file_path",
			mcplib.Description("Path the generated code is destined for, recorded in the usage ledger"),
		),
		mcplib.WithString("context",
			mcplib.Description("Surrounding code or project context for the task"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.toolHandler(string(services.OpGenerate)),
	}
}

func (s *Server) editCodeTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(string(services.OpEdit),
		mcplib.WithDescription("Apply a requested change to existing code using the DeepSeek worker model"),
		mcplib.WithString("original_code",
			mcplib.Required(),
			mcplib.Description("The code to modify"),
		),
		mcplib.WithString("change_request",
			mcplib.Required(),
			mcplib.Description("The change to apply"),
		),
		mcplib.WithString("language",
			mcplib.Required(),
			mcplib.Description("Programming language of the code"),
		),
		mcplib.WithString("file_path",
			mcplib.Description("Path of the edited file, recorded in the usage ledger"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.toolHandler(string(services.OpEdit)),
	}
}

func (s *Server) reviewCodeTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(string(services.OpReview),
		mcplib.WithDescription("Review code and report issues using the DeepSeek worker model"),
		mcplib.WithString("code",
			mcplib.Required(),
			mcplib.Description("The code to review"),
		),
		mcplib.WithArray("focus_areas",
			mcplib.Description("Review focus areas (default: performance, security, readability)"),
			mcplib.Items(map[string]any{"type": "string"}),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.toolHandler(string(services.OpReview)),
	}
}

func (s *Server) costReportTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(services.ToolCostReport,
		mcplib.WithDescription("Report recorded spend, grouped per day and operation"),
		mcplib.WithString("period",
			mcplib.Required(),
			mcplib.Description("Report window"),
			mcplib.Enum("today", "week", "month", "all"),
		),
		mcplib.WithString("tool",
			mcplib.Description("Restrict the report to one operation kind"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.toolHandler(services.ToolCostReport),
	}
}

// toolHandler adapts the broker to the mcp-go handler signature. Per-call
// failures become JSON error payloads in the tool result rather than
// protocol errors, so the calling agent always gets structured content back.
func (s *Server) toolHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		payload, err := s.broker.HandleToolCall(ctx, name, req.GetArguments())
		if err != nil {
			data, merr := json.Marshal(services.ErrorPayload(err))
			if merr != nil {
				return mcplib.NewToolResultError(err.Error()), nil
			}
			result := mcplib.NewToolResultText(string(data))
			result.IsError = true
			return result, nil
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to marshal tool result", err), nil
		}
		return mcplib.NewToolResultText(string(data)), nil
	}
}
