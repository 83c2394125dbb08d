package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"autoform-mcp/internal/autoform"
)

// ServerName is the implementation name reported at initialization.
const ServerName = "Autoform MCP Server"

// Names under which the tool, resource and prompt are exposed.
const (
	QueryCorporateBodies = "query_corporate_bodies"
	APIInfoURI           = "autoform://api-info"
	SearchCompanyPrompt  = "search_company_prompt"
)

// QueryInput is the argument object of query_corporate_bodies.
type QueryInput struct {
	Query      string `json:"query" jsonschema:"query expression, e.g. name:Slovenská pošta or cin:36631124"`
	Limit      *int   `json:"limit,omitempty" jsonschema:"maximum number of results (1-20, default 5)"`
	ActiveOnly bool   `json:"active_only,omitempty" jsonschema:"return only active (non-terminated) entities"`
}

func (in QueryInput) params() autoform.SearchParams {
	p := autoform.SearchParams{Query: in.Query, ActiveOnly: in.ActiveOnly}
	if in.Limit != nil {
		p.Limit = *in.Limit
	}
	return p
}

// Validate rejects an explicit limit outside 1..MaxLimit; only an absent limit
// falls back to the default.
func (in QueryInput) Validate() error {
	if in.Limit != nil && *in.Limit < 1 {
		return &autoform.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", autoform.MaxLimit)}
	}
	return in.params().Validate()
}

// RegisterAutoform adds the Autoform tools backed by client to reg.
func RegisterAutoform(reg *Registry, client *autoform.Client) error {
	query, err := NewTool(QueryCorporateBodies,
		"Search Slovak corporate bodies (companies, organisations, sole traders) in the Autoform register "+
			"by name or by company identification number (IČO). Use name:<text> or cin:<digits>.",
		func(ctx context.Context, in QueryInput) (autoform.SearchResult, error) {
			res, err := client.Search(ctx, in.params())
			if err != nil {
				return autoform.SearchResult{}, err
			}
			return *res, nil
		})
	if err != nil {
		return err
	}
	if limit := query.InputSchema.Properties["limit"]; limit != nil {
		lo, hi := 1.0, float64(autoform.MaxLimit)
		limit.Minimum = &lo
		limit.Maximum = &hi
		limit.Default = json.RawMessage(fmt.Sprint(autoform.DefaultLimit))
	}
	return reg.Register(query)
}

// NewServer builds the MCP server exposing reg together with the Autoform
// resource and prompt.
func NewServer(version string, reg *Registry, baseURL string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasResources: true,
		HasPrompts:   true,
	})
	Bind(server, reg)

	server.AddResource(&mcp.Resource{
		URI:         APIInfoURI,
		Name:        "api-info",
		Description: "How the Autoform corporate body search works: query syntax, limits, filters and authentication",
		MIMEType:    "application/json",
	}, apiInfoHandler(baseURL))

	server.AddPrompt(&mcp.Prompt{
		Name:        SearchCompanyPrompt,
		Description: "Look up a Slovak company in the Autoform register",
		Arguments: []*mcp.PromptArgument{
			{Name: "company_name", Description: "company name or IČO to look for", Required: true},
			{Name: "search_type", Description: "name (default) or cin"},
		},
	}, searchCompanyHandler)

	return server
}

// APIInfo is the document served at autoform://api-info.
type APIInfo struct {
	Name           string            `json:"name"`
	Provider       string            `json:"provider"`
	BaseURL        string            `json:"base_url"`
	Endpoint       string            `json:"endpoint"`
	QuerySyntax    map[string]string `json:"query_syntax"`
	DefaultLimit   int               `json:"default_limit"`
	MaxLimit       int               `json:"max_limit"`
	Filters        map[string]string `json:"filters"`
	Authentication []string          `json:"authentication"`
}

func newAPIInfo(baseURL string) APIInfo {
	return APIInfo{
		Name:     "Autoform API",
		Provider: "Slovensko.Digital",
		BaseURL:  baseURL,
		Endpoint: "GET /api/corporate_bodies/search",
		QuerySyntax: map[string]string{
			"name:<text>":  "match corporate bodies whose name starts with or contains <text>",
			"cin:<digits>": "match by company identification number (IČO), prefixes allowed",
		},
		DefaultLimit: autoform.DefaultLimit,
		MaxLimit:     autoform.MaxLimit,
		Filters: map[string]string{
			"active": "only corporate bodies that have not been terminated (active_only=true)",
		},
		Authentication: []string{
			"Authorization: Bearer <token> header on the MCP HTTP request",
			"x-autoform-private-access-token header on the MCP HTTP request",
			autoform.TokenEnv + " environment variable of the server",
		},
	}
}

func apiInfoHandler(baseURL string) mcp.ResourceHandler {
	raw, err := json.MarshalIndent(newAPIInfo(baseURL), "", "  ")
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: APIInfoURI, MIMEType: "application/json", Text: string(raw)}},
		}, nil
	}
}

func searchCompanyHandler(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var args map[string]string
	if req != nil && req.Params != nil {
		args = req.Params.Arguments
	}
	text, err := searchCompanyText(args["company_name"], args["search_type"])
	if err != nil {
		return nil, err
	}
	return &mcp.GetPromptResult{
		Description: "Look up a Slovak company in the Autoform register",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}, nil
}

func searchCompanyText(company, searchType string) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", &autoform.ValidationError{Field: "company_name", Message: "is required"}
	}
	prefix := strings.ToLower(strings.TrimSpace(searchType))
	switch prefix {
	case "", "name":
		prefix = "name"
	case "cin":
	default:
		return "", &autoform.ValidationError{Field: "search_type", Message: "must be name or cin"}
	}
	return fmt.Sprintf(
		"Find the Slovak corporate body %q. Call the %s tool with query %q. "+
			"Report its name, IČO (cin), DIČ (tin), IČ DPH (vatin) if present, address, "+
			"establishment date and, if it was terminated, the termination date. "+
			"If several entities match, list them and ask which one is meant.",
		company, QueryCorporateBodies, prefix+":"+company), nil
}
