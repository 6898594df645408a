// Package auth extracts the caller's API key from a request. Keys are opaque
// and resolved against the rule store by the decision pipeline.
package auth

import (
	"net/http"
	"strings"
)

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// APIKey prefers the bearer token and falls back to fallbackHeader.
func APIKey(r *http.Request, fallbackHeader string) string {
	if key := BearerToken(r); key != "" {
		return key
	}
	if fallbackHeader == "" {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(fallbackHeader))
}
