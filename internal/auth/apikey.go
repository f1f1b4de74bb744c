// Package auth guards the websocket endpoint with static API keys.
package auth

import (
	"crypto/subtle"
	"net/http"
)

const (
	HeaderName = "X-Api-Key"
	QueryParam = "api_key"
)

// APIKeyAuth provides a simple API key authentication
type APIKeyAuth struct {
	validKeys [][]byte
}

// NewAPIKeyAuth creates a new API key authentication middleware. With no keys
// every request is accepted.
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	validKeys := make([][]byte, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			validKeys = append(validKeys, []byte(key))
		}
	}

	return &APIKeyAuth{
		validKeys: validKeys,
	}
}

// Enabled reports whether any key is configured.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.validKeys) > 0
}

// IsValidKey checks if a key is valid
func (a *APIKeyAuth) IsValidKey(key string) bool {
	if !a.Enabled() {
		return true
	}

	candidate := []byte(key)
	valid := 0
	for _, k := range a.validKeys {
		valid |= subtle.ConstantTimeCompare(k, candidate)
	}
	return valid == 1
}

// KeyFromRequest returns the key from the header, falling back to the query
// string since browsers cannot set headers on a websocket handshake.
func KeyFromRequest(r *http.Request) string {
	if key := r.Header.Get(HeaderName); key != "" {
		return key
	}
	return r.URL.Query().Get(QueryParam)
}

// Authorized reports whether r carries a valid key.
func (a *APIKeyAuth) Authorized(r *http.Request) bool {
	return a.IsValidKey(KeyFromRequest(r))
}
