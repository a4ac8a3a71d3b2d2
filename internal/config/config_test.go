// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, DefaultAPIVersion, cfg.Upstream.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "ModerationBlocklist", cfg.Pipeline.Blocklist)
	assert.False(t, cfg.Pipeline.FailOpen)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AZURE_CONTENTSAFETY_ENDPOINT", "https://cs.example.cognitiveservices.azure.com")
	t.Setenv("AZURE_CONTENTSAFETY_KEY", "secret")
	t.Setenv("AZURE_CONTENTSAFETY_API_VERSION", "2023-10-01")
	t.Setenv("CONTENTSAFETY_LISTEN", "127.0.0.1:9090")
	t.Setenv("CONTENTSAFETY_UPSTREAM_TIMEOUT", "5s")
	t.Setenv("CONTENTSAFETY_FAIL_OPEN", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.Equal(t, "https://cs.example.cognitiveservices.azure.com", cfg.Upstream.Endpoint)
	assert.Equal(t, "secret", cfg.Upstream.Key)
	assert.Equal(t, "2023-10-01", cfg.Upstream.APIVersion)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.True(t, cfg.Pipeline.FailOpen)
}

func TestLoadFileThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
listen: ":7070"
upstream:
  endpoint: https://file.example.com
  timeout: 10s
pipeline:
  blocklist: FileBlocklist
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("CONTENTSAFETY_LISTEN", ":6060")

	cfg, err := Load(path)
	require.NoError(t, err)

	// env beats file, file beats default
	assert.Equal(t, ":6060", cfg.Listen)
	assert.Equal(t, "https://file.example.com", cfg.Upstream.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "FileBlocklist", cfg.Pipeline.Blocklist)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [broken"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseIntInvalid(t *testing.T) {
	t.Setenv("CONTENTSAFETY_REQUESTS_PER_MIN", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().RequestsPerMin, cfg.RequestsPerMin)
}
