package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"autoform-mcp/internal/autoform"
)

// Bind registers every tool of reg on server.
func Bind(server *mcp.Server, reg *Registry) {
	for _, t := range reg.List() {
		tool := &mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
		if t.OutputSchema != nil {
			tool.OutputSchema = t.OutputSchema
		}
		server.AddTool(tool, toolHandler(reg, t.Name))
	}
}

// toolHandler adapts a registry entry to the SDK. Tool failures are reported in
// the result, never as a protocol error, so one bad call cannot break the session.
func toolHandler(reg *Registry, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return ErrorResult(&autoform.ValidationError{Message: "arguments must be a JSON object"}), nil
			}
		}
		if req.Extra != nil {
			ctx = autoform.WithToken(ctx, autoform.TokenFromHeader(req.Extra.Header))
		}

		out, err := reg.Invoke(ctx, name, args)
		if err != nil {
			return ErrorResult(err), nil
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return ErrorResult(fmt.Errorf("encode result: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(raw)}},
			StructuredContent: out,
		}, nil
	}
}

// ErrorResult renders err as a tool error. The classified error travels in _meta
// so a result declared with an output schema never carries a mismatching payload.
func ErrorResult(err error) *mcp.CallToolResult {
	info := autoform.Describe(err)
	return &mcp.CallToolResult{
		Meta:    mcp.Meta{"error": info},
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
