// SPDX-License-Identifier: MIT
package azcs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer provides a configurable Content Safety mock for testing.
// Text severities are keyed by substring match against the analysed text,
// so tests can stage harmful phrases without scripting every request.
type MockServer struct {
	*httptest.Server
	mu         sync.RWMutex
	severities map[string][]CategoryAnalysis // substring -> analysis
	attacks    map[string]bool               // substring -> attack detected
	blocklists map[string]*mockBlocklist
	ungrounded map[string]float64 // substring -> ungrounded percentage
	failures   map[string]int     // operation path suffix -> failures before success
	delay      time.Duration
	key        string // expected subscription key ("" accepts any)
	nextItemID int
}

type mockBlocklist struct {
	Description string
	Items       []TextBlocklistItem
}

// NewMockServer creates a Content Safety API mock with clean defaults.
func NewMockServer() *MockServer {
	m := &MockServer{
		severities: make(map[string][]CategoryAnalysis),
		attacks:    make(map[string]bool),
		blocklists: make(map[string]*mockBlocklist),
		ungrounded: make(map[string]float64),
		failures:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/contentsafety/text:analyze", m.handleAnalyzeText)
	mux.HandleFunc("/contentsafety/image:analyze", m.handleAnalyzeImage)
	mux.HandleFunc("/contentsafety/text:shieldPrompt", m.handleShieldPrompt)
	mux.HandleFunc("/contentsafety/text:detectGroundedness", m.handleGroundedness)
	mux.HandleFunc("/contentsafety/text/blocklists", m.handleListBlocklists)
	mux.HandleFunc("/contentsafety/text/blocklists/", m.handleBlocklist)

	m.Server = httptest.NewServer(mux)
	return m
}

// RequireKey makes the mock reject requests without this subscription key.
func (m *MockServer) RequireKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
}

// SetSeverity stages category severities for texts containing the substring.
func (m *MockServer) SetSeverity(substring string, analysis ...CategoryAnalysis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.severities[substring] = analysis
}

// SetAttack stages an attack detection for prompts containing the substring.
func (m *MockServer) SetAttack(substring string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attacks[substring] = true
}

// SetUngrounded stages an ungrounded percentage for texts containing the substring.
func (m *MockServer) SetUngrounded(substring string, percentage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ungrounded[substring] = percentage
}

// FailNext makes the next n requests to the operation (e.g. "text:analyze")
// fail with HTTP 500 before recovering.
func (m *MockServer) FailNext(operation string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[operation] = n
}

// SetDelay adds an artificial delay to every response.
func (m *MockServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Blocklist returns a snapshot of a stored blocklist's items, or nil.
func (m *MockServer) Blocklist(name string) []TextBlocklistItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bl, ok := m.blocklists[name]
	if !ok {
		return nil
	}
	items := make([]TextBlocklistItem, len(bl.Items))
	copy(items, bl.Items)
	return items
}

// gate applies delay, auth and staged failures. Returns false if it wrote a response.
func (m *MockServer) gate(w http.ResponseWriter, r *http.Request, operation string) bool {
	m.mu.Lock()
	delay := m.delay
	key := m.key
	if n, ok := m.failures[operation]; ok && n > 0 {
		m.failures[operation] = n - 1
		m.mu.Unlock()
		writeMockError(w, http.StatusInternalServerError, "InternalError", "staged failure")
		return false
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if key != "" && r.Header.Get(headerSubscriptionKey) != key {
		writeMockError(w, http.StatusUnauthorized, "Unauthorized", "invalid subscription key")
		return false
	}
	return true
}

func (m *MockServer) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r, "text:analyze") {
		return
	}
	var req AnalyzeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "text is required")
		return
	}

	result := AnalyzeTextResult{CategoriesAnalysis: m.categoriesFor(req.Text)}

	m.mu.RLock()
	for _, name := range req.BlocklistNames {
		if bl, ok := m.blocklists[name]; ok {
			for _, item := range bl.Items {
				if strings.Contains(req.Text, item.Text) {
					result.BlocklistsMatch = append(result.BlocklistsMatch, BlocklistMatch{
						BlocklistName:     name,
						BlocklistItemID:   item.BlocklistItemID,
						BlocklistItemText: item.Text,
					})
					if req.HaltOnBlocklistHit {
						break
					}
				}
			}
		}
	}
	m.mu.RUnlock()

	writeMockJSON(w, http.StatusOK, result)
}

func (m *MockServer) categoriesFor(text string) []CategoryAnalysis {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCategory := map[TextCategory]int{
		CategoryHate: 0, CategorySexual: 0, CategorySelfHarm: 0, CategoryViolence: 0,
	}
	for substr, analysis := range m.severities {
		if strings.Contains(text, substr) {
			for _, ca := range analysis {
				if ca.Severity > byCategory[ca.Category] {
					byCategory[ca.Category] = ca.Severity
				}
			}
		}
	}
	out := make([]CategoryAnalysis, 0, len(byCategory))
	for _, cat := range DefaultCategories() {
		out = append(out, CategoryAnalysis{Category: cat, Severity: byCategory[cat]})
	}
	return out
}

func (m *MockServer) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r, "image:analyze") {
		return
	}
	var req AnalyzeImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (len(req.Image.Content) == 0 && req.Image.BlobURL == "") {
		writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "image content is required")
		return
	}
	writeMockJSON(w, http.StatusOK, AnalyzeImageResult{
		CategoriesAnalysis: m.categoriesFor(string(req.Image.Content)),
	})
}

func (m *MockServer) handleShieldPrompt(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r, "text:shieldPrompt") {
		return
	}
	var req ShieldPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "malformed request")
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := ShieldPromptResult{DocumentsAnalysis: make([]AttackAnalysis, len(req.Documents))}
	for substr := range m.attacks {
		if strings.Contains(req.UserPrompt, substr) {
			result.UserPromptAnalysis.AttackDetected = true
		}
		for i, doc := range req.Documents {
			if strings.Contains(doc, substr) {
				result.DocumentsAnalysis[i].AttackDetected = true
			}
		}
	}
	writeMockJSON(w, http.StatusOK, result)
}

func (m *MockServer) handleGroundedness(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r, "text:detectGroundedness") {
		return
	}
	var req DetectGroundednessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" || len(req.GroundingSources) == 0 {
		writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "text and groundingSources are required")
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := DetectGroundednessResult{}
	for substr, pct := range m.ungrounded {
		if strings.Contains(req.Text, substr) {
			result.UngroundedDetected = true
			result.UngroundedPercentage = pct
			result.UngroundedDetails = []UngroundedDetail{{Text: substr}}
		}
	}
	writeMockJSON(w, http.StatusOK, result)
}

func (m *MockServer) handleListBlocklists(w http.ResponseWriter, r *http.Request) {
	if !m.gate(w, r, "text/blocklists") {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	lists := make([]TextBlocklist, 0, len(m.blocklists))
	for name, bl := range m.blocklists {
		lists = append(lists, TextBlocklist{BlocklistName: name, Description: bl.Description})
	}
	writeMockJSON(w, http.StatusOK, map[string]any{"value": lists})
}

func (m *MockServer) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/contentsafety/text/blocklists/")
	if !m.gate(w, r, "text/blocklists/"+rest) {
		return
	}

	switch {
	case strings.HasSuffix(rest, ":addOrUpdateBlocklistItems"):
		m.handleAddItems(w, r, strings.TrimSuffix(rest, ":addOrUpdateBlocklistItems"))
	case strings.HasSuffix(rest, ":removeBlocklistItems"):
		m.handleRemoveItems(w, r, strings.TrimSuffix(rest, ":removeBlocklistItems"))
	case strings.HasSuffix(rest, "/blocklistItems"):
		m.handleListItems(w, strings.TrimSuffix(rest, "/blocklistItems"))
	default:
		m.handleBlocklistResource(w, r, rest)
	}
}

func (m *MockServer) handleBlocklistResource(w http.ResponseWriter, r *http.Request, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r.Method {
	case http.MethodPatch:
		var req TextBlocklist
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "malformed request")
			return
		}
		status := http.StatusOK
		if _, exists := m.blocklists[name]; !exists {
			m.blocklists[name] = &mockBlocklist{}
			status = http.StatusCreated
		}
		m.blocklists[name].Description = req.Description
		writeMockJSON(w, status, TextBlocklist{BlocklistName: name, Description: req.Description})
	case http.MethodGet:
		bl, ok := m.blocklists[name]
		if !ok {
			writeMockError(w, http.StatusNotFound, "NotFound", "blocklist not found")
			return
		}
		writeMockJSON(w, http.StatusOK, TextBlocklist{BlocklistName: name, Description: bl.Description})
	case http.MethodDelete:
		if _, ok := m.blocklists[name]; !ok {
			writeMockError(w, http.StatusNotFound, "NotFound", "blocklist not found")
			return
		}
		delete(m.blocklists, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *MockServer) handleAddItems(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		BlocklistItems []TextBlocklistItem `json:"blocklistItems"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "malformed request")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	bl, ok := m.blocklists[name]
	if !ok {
		writeMockError(w, http.StatusNotFound, "NotFound", "blocklist not found")
		return
	}
	stored := make([]TextBlocklistItem, 0, len(req.BlocklistItems))
	for _, item := range req.BlocklistItems {
		m.nextItemID++
		item.BlocklistItemID = fmt.Sprintf("item-%d", m.nextItemID)
		bl.Items = append(bl.Items, item)
		stored = append(stored, item)
	}
	writeMockJSON(w, http.StatusOK, map[string]any{"blocklistItems": stored})
}

func (m *MockServer) handleRemoveItems(w http.ResponseWriter, r *http.Request, name string) {
	var req struct {
		BlocklistItemIDs []string `json:"blocklistItemIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMockError(w, http.StatusBadRequest, "InvalidRequestBody", "malformed request")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	bl, ok := m.blocklists[name]
	if !ok {
		writeMockError(w, http.StatusNotFound, "NotFound", "blocklist not found")
		return
	}
	remove := make(map[string]bool, len(req.BlocklistItemIDs))
	for _, id := range req.BlocklistItemIDs {
		remove[id] = true
	}
	kept := bl.Items[:0]
	for _, item := range bl.Items {
		if !remove[item.BlocklistItemID] {
			kept = append(kept, item)
		}
	}
	bl.Items = kept
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockServer) handleListItems(w http.ResponseWriter, name string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bl, ok := m.blocklists[name]
	if !ok {
		writeMockError(w, http.StatusNotFound, "NotFound", "blocklist not found")
		return
	}
	writeMockJSON(w, http.StatusOK, map[string]any{"value": bl.Items})
}

func writeMockJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMockError(w http.ResponseWriter, status int, code, message string) {
	writeMockJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
