package autoform

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

const (
	// TokenEnv names the environment variable holding the fallback access token.
	TokenEnv = "AUTOFORM_PRIVATE_ACCESS_TOKEN"
	// TokenHeader lets a caller pass its own token without using Authorization.
	TokenHeader = "X-Autoform-Private-Access-Token"

	tokenParam = "private_access_token"
)

type tokenKey struct{}

// WithToken attaches a per-invocation access token to ctx. It takes precedence
// over the token the Client was built with.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey{}).(string)
	return v
}

// TokenFromHeader resolves the caller's token from inbound headers:
// a Bearer Authorization header wins over TokenHeader. Other schemes are ignored.
func TokenFromHeader(h http.Header) string {
	if h == nil {
		return ""
	}
	if auth := strings.TrimSpace(h.Get("Authorization")); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(h.Get(TokenHeader))
}

var tokenPattern = regexp.MustCompile(`(` + tokenParam + `=)[^&#]*`)

// SanitizeURL masks the access token so the URL is safe to log or return.
func SanitizeURL(raw string) string {
	return tokenPattern.ReplaceAllString(raw, "${1}***")
}
