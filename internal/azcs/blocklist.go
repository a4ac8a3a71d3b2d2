// SPDX-License-Identifier: MIT

package azcs

import (
	"context"
	"net/http"
	"net/url"
)

// blocklistPath builds the resource path for one blocklist, with an optional
// action suffix (":addOrUpdateBlocklistItems" etc.).
func blocklistPath(name, action string) string {
	return "/contentsafety/text/blocklists/" + url.PathEscape(name) + action
}

// CreateOrUpdateBlocklist creates a blocklist, or updates its description if
// it already exists.
func (c *Client) CreateOrUpdateBlocklist(ctx context.Context, name, description string) (*TextBlocklist, error) {
	req := TextBlocklist{BlocklistName: name, Description: description}
	var out TextBlocklist
	if err := c.do(ctx, "blocklist_upsert", http.MethodPatch, blocklistPath(name, ""), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlocklist fetches one blocklist by name.
func (c *Client) GetBlocklist(ctx context.Context, name string) (*TextBlocklist, error) {
	var out TextBlocklist
	if err := c.do(ctx, "blocklist_get", http.MethodGet, blocklistPath(name, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBlocklists returns all blocklists of the resource.
func (c *Client) ListBlocklists(ctx context.Context) ([]TextBlocklist, error) {
	var out struct {
		Value []TextBlocklist `json:"value"`
	}
	if err := c.do(ctx, "blocklist_list", http.MethodGet, "/contentsafety/text/blocklists", nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// DeleteBlocklist removes a blocklist and all its items.
func (c *Client) DeleteBlocklist(ctx context.Context, name string) error {
	return c.do(ctx, "blocklist_delete", http.MethodDelete, blocklistPath(name, ""), nil, nil)
}

// AddOrUpdateBlocklistItems adds items to a blocklist, updating items whose
// ID already exists. Returns the stored items with their assigned IDs.
func (c *Client) AddOrUpdateBlocklistItems(ctx context.Context, name string, items []TextBlocklistItem) ([]TextBlocklistItem, error) {
	req := struct {
		BlocklistItems []TextBlocklistItem `json:"blocklistItems"`
	}{BlocklistItems: items}
	var out struct {
		BlocklistItems []TextBlocklistItem `json:"blocklistItems"`
	}
	if err := c.do(ctx, "blocklist_add_items", http.MethodPost, blocklistPath(name, ":addOrUpdateBlocklistItems"), req, &out); err != nil {
		return nil, err
	}
	return out.BlocklistItems, nil
}

// RemoveBlocklistItems deletes items from a blocklist by ID.
func (c *Client) RemoveBlocklistItems(ctx context.Context, name string, itemIDs []string) error {
	req := struct {
		BlocklistItemIDs []string `json:"blocklistItemIds"`
	}{BlocklistItemIDs: itemIDs}
	return c.do(ctx, "blocklist_remove_items", http.MethodPost, blocklistPath(name, ":removeBlocklistItems"), req, nil)
}

// ListBlocklistItems returns the items of a blocklist.
func (c *Client) ListBlocklistItems(ctx context.Context, name string) ([]TextBlocklistItem, error) {
	var out struct {
		Value []TextBlocklistItem `json:"value"`
	}
	if err := c.do(ctx, "blocklist_list_items", http.MethodGet, blocklistPath(name, "")+"/blocklistItems", nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}
