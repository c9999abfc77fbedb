package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicyAllowList(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", "https://chat.example.com"}, zaptest.NewLogger(t).Sugar())

	assert.True(t, policy.allow(requestWithOrigin("http://localhost:8080")))
	assert.True(t, policy.allow(requestWithOrigin("HTTP://LOCALHOST:8080")))
	assert.True(t, policy.allow(requestWithOrigin("https://chat.example.com")))
	assert.False(t, policy.allow(requestWithOrigin("https://evil.example.com")))
	assert.False(t, policy.allow(requestWithOrigin("")))
	assert.False(t, policy.allow(requestWithOrigin("not a url")))
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, zaptest.NewLogger(t).Sugar())

	assert.True(t, policy.allow(requestWithOrigin("https://anything.example.com")))
	// Even a wildcard needs a parseable origin header.
	assert.False(t, policy.allow(requestWithOrigin("")))
}

func TestOriginPolicySkipsInvalidEntries(t *testing.T) {
	policy := newOriginPolicy([]string{"", "   ", "no-scheme", "http://ok.example.com"}, zaptest.NewLogger(t).Sugar())

	assert.True(t, policy.allow(requestWithOrigin("http://ok.example.com")))
	assert.False(t, policy.allow(requestWithOrigin("http://no-scheme")))
}
