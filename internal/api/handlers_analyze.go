// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"unicode/utf8"

	"github.com/Azure-Samples/content-safety/internal/azcs"
)

// maxAnalyzeBody bounds the JSON envelope for text-based operations; image
// payloads get their own budget from the configured image cap.
const maxAnalyzeBody = 1 << 20

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req azcs.AnalyzeTextRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if utf8.RuneCountInString(req.Text) > s.cfg.Pipeline.MaxTextChars {
		writeError(w, http.StatusRequestEntityTooLarge, "text_too_long", "text exceeds the maximum length")
		return
	}

	res, err := s.upstream.AnalyzeText(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	// Base64 inflates the payload by 4/3 plus the JSON envelope.
	maxBody := int64(s.cfg.Pipeline.MaxImageBytes)*4/3 + 4096

	var req azcs.AnalyzeImageRequest
	if err := decodeJSON(w, r, &req, maxBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if len(req.Image.Content) == 0 && req.Image.BlobURL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "image content or blobUrl is required")
		return
	}
	if len(req.Image.Content) > s.cfg.Pipeline.MaxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds the maximum size")
		return
	}

	res, err := s.upstream.AnalyzeImage(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleShieldPrompt(w http.ResponseWriter, r *http.Request) {
	var req azcs.ShieldPromptRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.UserPrompt == "" && len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "userPrompt or documents is required")
		return
	}

	res, err := s.upstream.ShieldPrompt(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDetectGroundedness(w http.ResponseWriter, r *http.Request) {
	var req azcs.DetectGroundednessRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Text == "" || len(req.GroundingSources) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "text and groundingSources are required")
		return
	}

	// Reasoning needs an Azure OpenAI resource; fill it in from config so
	// callers only pass the flag.
	if req.Reasoning && req.LLMResource == nil {
		if s.cfg.OpenAI.Endpoint == "" || s.cfg.OpenAI.Deployment == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "reasoning requires a configured Azure OpenAI resource")
			return
		}
		req.LLMResource = &azcs.LLMResource{
			ResourceType:              "AzureOpenAI",
			AzureOpenAIEndpoint:       s.cfg.OpenAI.Endpoint,
			AzureOpenAIDeploymentName: s.cfg.OpenAI.Deployment,
		}
	}

	res, err := s.upstream.DetectGroundedness(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
