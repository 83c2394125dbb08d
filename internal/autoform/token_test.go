package autoform

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenFromHeader(t *testing.T) {
	cases := []struct {
		name   string
		header http.Header
		want   string
	}{
		{"nil", nil, ""},
		{"empty", http.Header{}, ""},
		{"bearer", http.Header{"Authorization": {"Bearer auth-token"}}, "auth-token"},
		{"bearer upper case", http.Header{"Authorization": {"BEARER auth-token"}}, "auth-token"},
		{"bearer beats custom", http.Header{"Authorization": {"Bearer a"}, TokenHeader: {"b"}}, "a"},
		{"custom", http.Header{TokenHeader: {"header-token"}}, "header-token"},
		{"basic ignored", http.Header{"Authorization": {"Basic abc123"}}, ""},
		{"basic falls to custom", http.Header{"Authorization": {"Basic abc123"}, TokenHeader: {"c"}}, "c"},
		{"empty bearer", http.Header{"Authorization": {"Bearer "}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TokenFromHeader(tc.header))
		})
	}
}

func TestWithTokenIgnoresEmpty(t *testing.T) {
	ctx := WithToken(context.Background(), "")
	assert.Equal(t, "", TokenFromContext(ctx))
	assert.Equal(t, "x", TokenFromContext(WithToken(ctx, "x")))
}

func TestSanitizeURL(t *testing.T) {
	got := SanitizeURL("https://api.example.com/search?q=test&private_access_token=secret123&limit=5")
	assert.NotContains(t, got, "secret123")
	assert.Contains(t, got, "private_access_token=***")
	assert.Contains(t, got, "q=test")
	assert.Contains(t, got, "limit=5")

	got = SanitizeURL("https://api.example.com/search?private_access_token=secret123")
	assert.Equal(t, "https://api.example.com/search?private_access_token=***", got)

	plain := "https://api.example.com/search?q=test"
	assert.Equal(t, plain, SanitizeURL(plain))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, KindValidation, Describe(&ValidationError{Field: "q", Message: "bad"}).Kind)
	assert.Equal(t, ErrorInfo{Kind: KindRemote, Status: 404, Message: "not found"},
		Describe(&RemoteError{StatusCode: 404, Message: "not found"}))
	assert.Equal(t, KindTransport, Describe(&TransportError{Method: "GET", URL: "u", Err: errors.New("dial")}).Kind)
	assert.Equal(t, KindInternal, Describe(errors.New("boom")).Kind)

	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ValidationError{}))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(&RemoteError{StatusCode: 500}))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(&TransportError{Err: errors.New("refused")}))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(&TransportError{Err: context.DeadlineExceeded}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
