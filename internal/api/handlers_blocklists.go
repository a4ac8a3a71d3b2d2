// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/Azure-Samples/content-safety/internal/azcs"
)

// Upstream naming rule for blocklists.
var blocklistNameRe = regexp.MustCompile(`^[0-9A-Za-z._~-]{1,64}$`)

func blocklistName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if !blocklistNameRe.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid blocklist name")
		return "", false
	}
	return name, true
}

func (s *Server) handleListBlocklists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.upstream.ListBlocklists(r.Context())
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]azcs.TextBlocklist{"blocklists": lists})
}

type upsertBlocklistRequest struct {
	Description string `json:"description,omitempty"`
}

func (s *Server) handleUpsertBlocklist(w http.ResponseWriter, r *http.Request) {
	name, ok := blocklistName(w, r)
	if !ok {
		return
	}

	var req upsertBlocklistRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	bl, err := s.upstream.CreateOrUpdateBlocklist(r.Context(), name, req.Description)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bl)
}

func (s *Server) handleGetBlocklist(w http.ResponseWriter, r *http.Request) {
	name, ok := blocklistName(w, r)
	if !ok {
		return
	}

	bl, err := s.upstream.GetBlocklist(r.Context(), name)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bl)
}

func (s *Server) handleDeleteBlocklist(w http.ResponseWriter, r *http.Request) {
	name, ok := blocklistName(w, r)
	if !ok {
		return
	}

	if err := s.upstream.DeleteBlocklist(r.Context(), name); err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBlocklistItems(w http.ResponseWriter, r *http.Request) {
	name, ok := blocklistName(w, r)
	if !ok {
		return
	}

	items, err := s.upstream.ListBlocklistItems(r.Context(), name)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]azcs.TextBlocklistItem{"items": items})
}

type addItemsRequest struct {
	Items []azcs.TextBlocklistItem `json:"items"`
}

func (s *Server) handleAddBlocklistItems(w http.ResponseWriter, r *http.Request) {
	name, ok := blocklistName(w, r)
	if !ok {
		return
	}

	var req addItemsRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "items is required")
		return
	}
	for _, it := range req.Items {
		if it.Text == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "every item needs a text")
			return
		}
	}

	items, err := s.upstream.AddOrUpdateBlocklistItems(r.Context(), name, req.Items)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]azcs.TextBlocklistItem{"items": items})
}

type removeItemsRequest struct {
	ItemIDs []string `json:"itemIds"`
}

func (s *Server) handleRemoveBlocklistItems(w http.ResponseWriter, r *http.Request) {
	name, ok := blocklistName(w, r)
	if !ok {
		return
	}

	var req removeItemsRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "itemIds is required")
		return
	}

	if err := s.upstream.RemoveBlocklistItems(r.Context(), name, req.ItemIDs); err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
