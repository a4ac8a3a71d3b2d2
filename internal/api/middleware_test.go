// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure-Samples/content-safety/internal/config"
	"github.com/Azure-Samples/content-safety/internal/llm"
)

func TestAuthMissingToken(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, nil)

	res, err := http.Get(env.srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAuthInvalidToken(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, nil)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAuthFailClosedWithoutConfiguredToken(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, func(cfg *config.AppConfig) {
		cfg.APIToken = ""
	})

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAuthValidToken(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, nil)

	res := env.call(t, http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProbesAreUnauthenticated(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		res, err := http.Get(env.srv.URL + path)
		require.NoError(t, err)
		_ = res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, nil)

	res, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, nil)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "caller-supplied-id", res.Header.Get("X-Request-ID"))
}

func TestAPIRateLimit(t *testing.T) {
	env := newTestEnv(t, llm.VerdictNotHarmful, func(cfg *config.AppConfig) {
		cfg.RequestsPerMin = 2
	})

	for i := 0; i < 2; i++ {
		res := env.call(t, http.MethodGet, "/api/v1/status", nil, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}

	res := env.call(t, http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))
}

func TestBearerTokenParsing(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Basic abc123")
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, "secret", bearerToken(req))

	req.Header.Set("Authorization", "bearer lowercase")
	assert.Equal(t, "lowercase", bearerToken(req))
}
