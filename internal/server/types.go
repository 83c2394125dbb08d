package server

import (
	"github.com/google/jsonschema-go/jsonschema"

	"autoform-mcp/internal/autoform"
)

// Tool describes a registered tool and its declared shapes.
type Tool struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	InputSchema  *jsonschema.Schema `json:"inputSchema"`
	OutputSchema *jsonschema.Schema `json:"outputSchema,omitempty"`
}

// CallRequest is the body of POST /mcp/call.
type CallRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// CallResponse carries exactly one of Result or Error.
type CallResponse struct {
	Result any                 `json:"result,omitempty"`
	Error  *autoform.ErrorInfo `json:"error,omitempty"`
}
