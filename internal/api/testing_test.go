// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Azure-Samples/content-safety/internal/azcs"
	"github.com/Azure-Samples/content-safety/internal/cache"
	"github.com/Azure-Samples/content-safety/internal/config"
	"github.com/Azure-Samples/content-safety/internal/filter"
	"github.com/Azure-Samples/content-safety/internal/health"
	"github.com/Azure-Samples/content-safety/internal/llm"
	"github.com/Azure-Samples/content-safety/internal/reports"
	"github.com/Azure-Samples/content-safety/internal/resilience"
)

const testToken = "test-token"

type fixedAdjudicator struct {
	verdict llm.Verdict
}

func (f fixedAdjudicator) EvaluateHarm(context.Context, string) (llm.Verdict, error) {
	return f.verdict, nil
}

type testEnv struct {
	srv    *httptest.Server
	mock   *azcs.MockServer
	store  *reports.Store
	config config.AppConfig
}

func newTestEnv(t *testing.T, verdict llm.Verdict, mutate func(*config.AppConfig)) *testEnv {
	t.Helper()

	mock := azcs.NewMockServer()
	t.Cleanup(mock.Close)

	cfg := config.Defaults()
	cfg.APIToken = testToken
	cfg.DataDir = t.TempDir()
	cfg.Upstream.Endpoint = mock.URL
	cfg.Pipeline.Blocklist = "auto-blocked"
	if mutate != nil {
		mutate(&cfg)
	}

	client := azcs.New(mock.URL, "upstream-key")
	_, err := client.CreateOrUpdateBlocklist(context.Background(), cfg.Pipeline.Blocklist, "")
	require.NoError(t, err)

	store, err := reports.Open(filepath.Join(cfg.DataDir, "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pipeline := filter.NewPipeline(client, filter.Options{
		Adjudicator: fixedAdjudicator{verdict: verdict},
		Blocklists:  client,
		Recorder:    store,
		Cache:       cache.NewNoOpCache(),
		Blocklist:   cfg.Pipeline.Blocklist,
		FailOpen:    cfg.Pipeline.FailOpen,
	})

	s := New(cfg, Deps{
		Upstream: client,
		Pipeline: pipeline,
		Store:    store,
		Health:   health.NewManager("test"),
		Breaker:  resilience.NewCircuitBreaker("upstream", 5, time.Second),
		Version:  "test",
	})

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, mock: mock, store: store, config: cfg}
}

// call sends an authenticated request and decodes the JSON response into out
// when out is non-nil.
func (e *testEnv) call(t *testing.T, method, path string, body, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}
