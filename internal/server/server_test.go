package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoform-mcp/internal/autoform"
	"autoform-mcp/internal/telemetry"
	"autoform-mcp/internal/tools"
)

// autoformStub records the access token of every search it answers.
type autoformStub struct {
	mu     sync.Mutex
	tokens []string
	status int
	body   string
}

func (a *autoformStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.tokens = append(a.tokens, r.URL.Query().Get("private_access_token"))
	a.mu.Unlock()
	w.WriteHeader(a.status)
	_, _ = io.WriteString(w, a.body)
}

func (a *autoformStub) lastToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.tokens) == 0 {
		return ""
	}
	return a.tokens[len(a.tokens)-1]
}

func newTestServer(t *testing.T, cfg Config, stub *autoformStub, envToken string) (*Server, *prometheus.Registry) {
	t.Helper()
	api := httptest.NewServer(stub)
	t.Cleanup(api.Close)

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)
	client := autoform.New(api.URL, envToken, nil)
	client.Observer = metrics

	reg := tools.NewRegistry(zap.NewNop(), metrics)
	require.NoError(t, tools.RegisterAutoform(reg, client))
	return New(cfg, reg, tools.NewServer("test", reg, api.URL), registry, zap.NewNop()), registry
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{}, &autoformStub{status: http.StatusOK, body: `[]`}, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestToolsAndCall(t *testing.T) {
	stub := &autoformStub{status: http.StatusOK, body: `[{"cin":"36631124","name":"Slovensko.Digital"}]`}
	s, _ := newTestServer(t, Config{}, stub, "env-token")

	req := httptest.NewRequest(http.MethodGet, "/mcp/tools", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var list struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Tools, 1)
	assert.Equal(t, tools.QueryCorporateBodies, list.Tools[0].Name)

	body, _ := json.Marshal(map[string]any{"name": tools.QueryCorporateBodies, "arguments": map[string]any{"query": "name:Slovensko"}})
	req = httptest.NewRequest(http.MethodPost, "/mcp/call", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Result autoform.SearchResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Result.Count)
	assert.Equal(t, "env-token", stub.lastToken())
}

func TestCallErrors(t *testing.T) {
	cases := []struct {
		name     string
		stub     *autoformStub
		envToken string
		payload  map[string]any
		code     int
		kind     string
	}{
		{"unknown tool", &autoformStub{status: 200, body: `[]`}, "tok", map[string]any{"name": "nope"}, http.StatusNotFound, autoform.KindValidation},
		{"missing query", &autoformStub{status: 200, body: `[]`}, "tok", map[string]any{"name": tools.QueryCorporateBodies, "arguments": map[string]any{}}, http.StatusBadRequest, autoform.KindValidation},
		{"missing token", &autoformStub{status: 200, body: `[]`}, "", map[string]any{"name": tools.QueryCorporateBodies, "arguments": map[string]any{"query": "name:x"}}, http.StatusBadRequest, autoform.KindValidation},
		{"remote error", &autoformStub{status: 500, body: "Internal Server Error"}, "tok", map[string]any{"name": tools.QueryCorporateBodies, "arguments": map[string]any{"query": "name:x"}}, http.StatusBadGateway, autoform.KindRemote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, Config{}, tc.stub, tc.envToken)
			body, _ := json.Marshal(tc.payload)
			req := httptest.NewRequest(http.MethodPost, "/mcp/call", bytes.NewReader(body))
			rr := httptest.NewRecorder()
			s.Router().ServeHTTP(rr, req)
			require.Equal(t, tc.code, rr.Code)

			var resp CallResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.kind, resp.Error.Kind)
		})
	}
}

func TestCallTokenPriority(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"bearer wins", map[string]string{"Authorization": "Bearer auth-token", autoform.TokenHeader: "custom-header-token"}, "auth-token"},
		{"bearer case-insensitive", map[string]string{"Authorization": "BEARER auth-token"}, "auth-token"},
		{"custom header over env", map[string]string{autoform.TokenHeader: "header-token"}, "header-token"},
		{"non-bearer ignored", map[string]string{"Authorization": "Basic abc123"}, "env-token"},
		{"env fallback", nil, "env-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &autoformStub{status: http.StatusOK, body: `[]`}
			s, _ := newTestServer(t, Config{}, stub, "env-token")
			body, _ := json.Marshal(map[string]any{"name": tools.QueryCorporateBodies, "arguments": map[string]any{"query": "name:x"}})
			req := httptest.NewRequest(http.MethodPost, "/mcp/call", bytes.NewReader(body))
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			s.Router().ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tc.want, stub.lastToken())
		})
	}
}

type headerTransport struct {
	header http.Header
	base   http.RoundTripper
}

func (h headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, vs := range h.header {
		r.Header[k] = vs
	}
	return h.base.RoundTrip(r)
}

func TestStreamableHTTPCallUsesBearerToken(t *testing.T) {
	stub := &autoformStub{status: http.StatusOK, body: `[{"cin":"1"}]`}
	s, _ := newTestServer(t, Config{Transport: TransportHTTP}, stub, "env-token")
	httpServer := httptest.NewServer(s.Router())
	t.Cleanup(httpServer.Close)

	ctx := context.Background()
	transport := &mcp.StreamableClientTransport{
		Endpoint: httpServer.URL + "/mcp",
		HTTPClient: &http.Client{Transport: headerTransport{
			header: http.Header{"Authorization": {"Bearer auth-token"}},
			base:   http.DefaultTransport,
		}},
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	defer session.Close()

	tl, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, tl.Tools, 1)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tools.QueryCorporateBodies,
		Arguments: map[string]any{"query": "cin:1"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "auth-token", stub.lastToken())
}

func TestSSETransportMountsSSE(t *testing.T) {
	s, _ := newTestServer(t, Config{Transport: TransportSSE}, &autoformStub{status: 200, body: `[]`}, "tok")
	httpServer := httptest.NewServer(s.Router())
	t.Cleanup(httpServer.Close)

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, &mcp.SSEClientTransport{Endpoint: httpServer.URL + "/sse"}, nil)
	require.NoError(t, err)
	defer session.Close()

	prompts, err := session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	require.NoError(t, err)
	require.Len(t, prompts.Prompts, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	stub := &autoformStub{status: http.StatusOK, body: `[]`}
	s, _ := newTestServer(t, Config{}, stub, "tok")

	body, _ := json.Marshal(map[string]any{"name": tools.QueryCorporateBodies, "arguments": map[string]any{"query": "name:x"}})
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mcp/call", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `autoform_tool_calls_total{outcome="ok",tool="query_corporate_bodies"} 1`)
	assert.Contains(t, rr.Body.String(), `autoform_remote_requests_total{method="GET",status="200"} 1`)
}
