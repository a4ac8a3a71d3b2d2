// SPDX-License-Identifier: MIT

package blocklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure-Samples/content-safety/internal/azcs"
)

const seedYAML = `blocklists:
  - name: banned-terms
    description: rejected outright
    items:
      - text: first-term
      - text: second-term
        description: added by policy review
  - name: empty-list
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocklists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeedFile(t *testing.T) {
	sf, err := Load(writeSeed(t, seedYAML))
	require.NoError(t, err)

	want := &SeedFile{Blocklists: []SeedList{
		{
			Name:        "banned-terms",
			Description: "rejected outright",
			Items: []SeedItem{
				{Text: "first-term"},
				{Text: "second-term", Description: "added by policy review"},
			},
		},
		{Name: "empty-list"},
	}}
	if diff := cmp.Diff(want, sf); diff != "" {
		t.Fatalf("seed file mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnnamedList(t *testing.T) {
	_, err := Load(writeSeed(t, "blocklists:\n  - description: nameless\n"))
	assert.ErrorContains(t, err, "has no name")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSyncPushesListsAndItems(t *testing.T) {
	mock := azcs.NewMockServer()
	defer mock.Close()

	client := azcs.New(mock.URL, "test-key")
	s := NewSeeder(client, writeSeed(t, seedYAML))

	require.NoError(t, s.Sync(context.Background()))

	items := mock.Blocklist("banned-terms")
	require.Len(t, items, 2)
	assert.Equal(t, "first-term", items[0].Text)
	assert.Equal(t, "added by policy review", items[1].Description)
	assert.NotNil(t, mock.Blocklist("empty-list"))
}

func TestSyncIsIdempotent(t *testing.T) {
	mock := azcs.NewMockServer()
	defer mock.Close()

	client := azcs.New(mock.URL, "test-key")
	s := NewSeeder(client, writeSeed(t, seedYAML))

	require.NoError(t, s.Sync(context.Background()))
	require.NoError(t, s.Sync(context.Background()))

	assert.Len(t, mock.Blocklist("banned-terms"), 2)
}

func TestSyncKeepsRuntimeItems(t *testing.T) {
	mock := azcs.NewMockServer()
	defer mock.Close()

	client := azcs.New(mock.URL, "test-key")
	s := NewSeeder(client, writeSeed(t, seedYAML))

	require.NoError(t, s.Sync(context.Background()))
	_, err := client.AddOrUpdateBlocklistItems(context.Background(), "banned-terms",
		[]azcs.TextBlocklistItem{{Text: "runtime-term"}})
	require.NoError(t, err)

	require.NoError(t, s.Sync(context.Background()))

	items := mock.Blocklist("banned-terms")
	require.Len(t, items, 3)
	seen := map[string]int{}
	for _, it := range items {
		seen[it.Text]++
	}
	assert.Equal(t, map[string]int{"first-term": 1, "second-term": 1, "runtime-term": 1}, seen)
}

func TestWatchResyncsOnRewrite(t *testing.T) {
	mock := azcs.NewMockServer()
	defer mock.Close()

	client := azcs.New(mock.URL, "test-key")
	path := writeSeed(t, seedYAML)
	s := NewSeeder(client, path)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Sync(ctx))
	require.NoError(t, s.Watch(ctx))

	updated := `blocklists:
  - name: banned-terms
    items:
      - text: first-term
      - text: second-term
      - text: third-term
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		return len(mock.Blocklist("banned-terms")) == 3
	}, 5*time.Second, 50*time.Millisecond)
}
