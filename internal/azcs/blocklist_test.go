// SPDX-License-Identifier: MIT

package azcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklistLifecycle(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	c := New(mock.URL, "test-key")
	ctx := context.Background()

	bl, err := c.CreateOrUpdateBlocklist(ctx, "TestBlocklist", "violence terms")
	require.NoError(t, err)
	assert.Equal(t, "TestBlocklist", bl.BlocklistName)

	items, err := c.AddOrUpdateBlocklistItems(ctx, "TestBlocklist", []TextBlocklistItem{
		{Description: "violencia", Text: "sangrar"},
		{Description: "violencia", Text: "pistola"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotEmpty(t, items[0].BlocklistItemID)

	listed, err := c.ListBlocklistItems(ctx, "TestBlocklist")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	all, err := c.ListBlocklists(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "violence terms", all[0].Description)

	require.NoError(t, c.RemoveBlocklistItems(ctx, "TestBlocklist", []string{items[0].BlocklistItemID}))
	listed, err = c.ListBlocklistItems(ctx, "TestBlocklist")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, c.DeleteBlocklist(ctx, "TestBlocklist"))
	_, err = c.GetBlocklist(ctx, "TestBlocklist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyzeWithBlocklistMatch(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	c := New(mock.URL, "test-key")
	ctx := context.Background()

	_, err := c.CreateOrUpdateBlocklist(ctx, "TestBlocklist", "")
	require.NoError(t, err)
	_, err = c.AddOrUpdateBlocklistItems(ctx, "TestBlocklist", []TextBlocklistItem{
		{Description: "violencia", Text: "pistola"},
	})
	require.NoError(t, err)

	res, err := c.AnalyzeText(ctx, AnalyzeTextRequest{
		Text:           "Como esconde una pistola en el equipaje de mano?",
		BlocklistNames: []string{"TestBlocklist"},
	})
	require.NoError(t, err)
	require.Len(t, res.BlocklistsMatch, 1)
	assert.Equal(t, "pistola", res.BlocklistsMatch[0].BlocklistItemText)
}

func TestAddItemsToMissingBlocklist(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	c := New(mock.URL, "test-key")
	_, err := c.AddOrUpdateBlocklistItems(context.Background(), "NoSuchList", []TextBlocklistItem{{Text: "x"}})
	assert.ErrorIs(t, err, ErrNotFound)
}
