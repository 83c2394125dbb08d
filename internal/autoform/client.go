// Package autoform provides a minimal client for the Autoform API of Slovensko.Digital.
package autoform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public Autoform endpoint.
const DefaultBaseURL = "https://autoform.ekosystem.slovensko.digital"

const maxBodyBytes = 8 << 20

// Observer receives one notification per remote call. Status is 0 when the
// call never produced a response.
type Observer interface {
	ObserveRemote(method string, status int)
}

// Client is a minimal HTTP client for the Autoform REST API.
// It is safe for concurrent use once constructed; no field is written after New.
type Client struct {
	BaseURL  string
	Token    string
	HTTP     *http.Client
	Logger   *zap.Logger
	Observer Observer
}

// New returns a new client. If httpClient is nil, a default with 15s timeout is used.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    httpClient,
		Logger:  zap.NewNop(),
	}
}

// Request is one outbound call. Path may contain {name} placeholders filled from
// PathParams. Body, when set, is sent as JSON.
type Request struct {
	Method     string
	Path       string
	PathParams map[string]string
	Query      url.Values
	Body       any
}

// Response is the raw answer to a successful call.
type Response struct {
	// URL is the request URL with the token masked.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Search runs a corporate body search.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, p.Request(), nil)
	if err != nil {
		return nil, err
	}
	items, err := extractItems(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, URL: resp.URL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &SearchResult{Results: items, Count: len(items)}, nil
}

// Do sends req and, on a 2xx answer, decodes the body into out (when out is non-nil
// and the body is non-empty). Exactly one HTTP request is issued; failures are never
// retried.
func (c *Client) Do(ctx context.Context, req Request, out any) (*Response, error) {
	httpReq, err := c.NewHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	safeURL := SanitizeURL(httpReq.URL.String())
	logger := c.logger().With(zap.String("method", httpReq.Method), zap.String("url", safeURL))

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		c.observe(httpReq.Method, 0)
		logger.Warn("autoform request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(stripURL(err)))
		return nil, &TransportError{Method: httpReq.Method, URL: safeURL, Err: stripURL(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(httpReq.Method, resp.StatusCode)
	if err != nil {
		return nil, &TransportError{Method: httpReq.Method, URL: safeURL, Err: fmt.Errorf("read response: %w", err)}
	}
	logger.Debug("autoform request", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: remoteMessage(resp.StatusCode, body), Body: body}
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, &TransportError{Method: httpReq.Method, URL: safeURL, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return &Response{URL: safeURL, StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// NewHTTPRequest builds the http.Request for req. It is a pure function of req,
// the client configuration and the token carried by ctx.
func (c *Client) NewHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	reqURL, err := c.buildURL(ctx, req)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("encode request body: %v", err)}
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// buildURL composes the request URL with path params, query params and the token.
func (c *Client) buildURL(ctx context.Context, req Request) (string, error) {
	token := TokenFromContext(ctx)
	if token == "" {
		token = c.Token
	}
	if token == "" {
		return "", &ValidationError{Field: tokenParam, Message: TokenEnv + " is not set and no token header was provided"}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base url %q", c.BaseURL)
	}
	path, rawPath, err := expandPath(req.Path, req.PathParams)
	if err != nil {
		return "", err
	}
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + rawPath
	u.Path = strings.TrimRight(u.Path, "/") + path
	q := url.Values{}
	for k, vs := range req.Query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set(tokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// expandPath fills {name} placeholders, returning both the decoded path and its
// escaped form so values containing '/' stay within one segment.
func expandPath(tmpl string, params map[string]string) (string, string, error) {
	var path, raw strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			path.WriteString(rest)
			raw.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", "", fmt.Errorf("unterminated placeholder in path %q", tmpl)
		}
		name := rest[open+1 : open+end]
		val, ok := params[name]
		if !ok || val == "" {
			return "", "", &ValidationError{Field: name, Message: "is required"}
		}
		path.WriteString(rest[:open])
		path.WriteString(val)
		raw.WriteString(rest[:open])
		raw.WriteString(url.PathEscape(val))
		rest = rest[open+end+1:]
	}
	p, r := path.String(), raw.String()
	if !strings.HasPrefix(p, "/") {
		p, r = "/"+p, "/"+r
	}
	return p, r, nil
}

// remoteMessage extracts the error detail from a failed response, preferring the
// JSON message fields Autoform uses and falling back to the raw text.
func remoteMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if s := getString(payload, key); s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case map[string]any:
			return getString(t, "message")
		}
	}
	return ""
}

// extractItems accepts the array Autoform returns as well as an object wrapping
// it under a common key.
func extractItems(body []byte) ([]CorporateBody, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []CorporateBody{}, nil
	}
	var items []CorporateBody
	if trimmed[0] == '{' {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		for _, key := range []string{"results", "data"} {
			if raw, ok := wrapped[key]; ok {
				trimmed = raw
				break
			}
		}
	}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []CorporateBody{}
	}
	return items, nil
}

// stripURL drops the *url.Error wrapper so the token-bearing URL never reaches
// logs or callers.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Client) observe(method string, status int) {
	if c.Observer != nil {
		c.Observer.ObserveRemote(method, status)
	}
}
