// Package apitest provides an in-memory stand-in for the paper/graph/chat service.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/csheth/papergraph/internal/api"
)

// Edge is the backend's edge record.
type Edge struct {
	ID       string
	Source   string
	Target   string
	Kind     string
	Evidence string
}

// SelectRequest is a decoded POST /papers/select body.
type SelectRequest struct {
	ArxivID       string `json:"arxiv_id"`
	SourcePaperID string `json:"source_paper_id,omitempty"`
}

// Backend serves the workspace contract from memory. By default chat replies with a
// canned line and select adds nothing; OnChat and OnSelect script other replies.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	papers   []api.Paper
	edges    []Edge
	history  []api.HistoryEntry
	calls    map[string]int
	selects  []SelectRequest
	failures map[string]int

	onChat   ChatHook
	onSelect SelectHook
}

// ChatHook scripts POST /chat. It runs with the backend lock held and may call the
// Locked* helpers.
type ChatHook func(b *Backend, message string) api.ChatResponse

// SelectHook scripts POST /papers/select under the same rules as ChatHook.
type SelectHook func(b *Backend, req SelectRequest) api.ChatResponse

// New starts a Backend and registers its shutdown with t.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{calls: map[string]int{}, failures: map[string]int{}}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the server base address.
func (b *Backend) URL() string {
	return b.Server.URL
}

// Client returns an api.Client pointed at the backend.
func (b *Backend) Client() *api.Client {
	return api.New(api.Config{BaseURL: b.Server.URL, HTTPClient: b.Server.Client()})
}

// OnChat installs a chat hook.
func (b *Backend) OnChat(hook ChatHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChat = hook
}

// OnSelect installs a select hook.
func (b *Backend) OnSelect(hook SelectHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSelect = hook
}

// AddPaper seeds a paper.
func (b *Backend) AddPaper(p api.Paper) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LockedAddPaper(p)
}

// LockedAddPaper seeds a paper from inside a hook.
func (b *Backend) LockedAddPaper(p api.Paper) {
	for i := range b.papers {
		if b.papers[i].ID == p.ID {
			b.papers[i] = p
			return
		}
	}
	b.papers = append(b.papers, p)
}

// AddEdge seeds an edge.
func (b *Backend) AddEdge(e Edge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LockedAddEdge(e)
}

// LockedAddEdge seeds an edge from inside a hook.
func (b *Backend) LockedAddEdge(e Edge) {
	b.edges = append(b.edges, e)
}

// SetHistory replaces the server-side transcript.
func (b *Backend) SetHistory(entries []api.HistoryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append([]api.HistoryEntry(nil), entries...)
}

// FailNext makes the next n requests to route ("METHOD /path") answer 500.
func (b *Backend) FailNext(route string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] += n
}

// Calls reports how many requests hit route ("METHOD /path").
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Selects returns every decoded select request in arrival order.
func (b *Backend) Selects() []SelectRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SelectRequest(nil), b.selects...)
}

// HasPaper reports whether id is stored.
func (b *Backend) HasPaper(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.papers {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	route := routeKey(r)
	b.calls[route]++
	if b.failures[route] > 0 {
		b.failures[route]--
		http.Error(w, `{"detail":"scripted failure"}`, http.StatusInternalServerError)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/papers":
		writeJSON(w, append([]api.Paper{}, b.papers...))
	case r.Method == http.MethodGet && r.URL.Path == "/graph/cytoscape":
		writeJSON(w, b.cytoscape())
	case r.Method == http.MethodPost && r.URL.Path == "/chat":
		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		b.history = append(b.history, api.HistoryEntry{Role: "user", Content: req.Message})
		resp := api.ChatResponse{Message: "I'm here to help with your research papers."}
		if b.onChat != nil {
			resp = b.onChat(b, req.Message)
		}
		b.history = append(b.history, api.HistoryEntry{Role: "assistant", Content: resp.Message})
		writeJSON(w, resp)
	case r.Method == http.MethodGet && r.URL.Path == "/chat/history":
		writeJSON(w, append([]api.HistoryEntry{}, b.history...))
	case r.Method == http.MethodDelete && r.URL.Path == "/chat/history":
		b.history = nil
		writeJSON(w, map[string]string{"message": "Chat history cleared"})
	case r.Method == http.MethodPost && r.URL.Path == "/papers/select":
		var req SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		b.selects = append(b.selects, req)
		resp := api.ChatResponse{Message: "No paper was added."}
		if b.onSelect != nil {
			resp = b.onSelect(b, req)
		}
		writeJSON(w, resp)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/papers/"):
		id := strings.TrimPrefix(r.URL.Path, "/papers/")
		if !b.deletePaper(id) {
			http.Error(w, `{"detail":"Paper not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"message": "Paper deleted"})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/edges/"):
		id := strings.TrimPrefix(r.URL.Path, "/edges/")
		kept := b.edges[:0]
		for _, e := range b.edges {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		b.edges = kept
		writeJSON(w, map[string]string{"message": "Edge deleted"})
	default:
		http.NotFound(w, r)
	}
}

func (b *Backend) deletePaper(id string) bool {
	found := false
	kept := b.papers[:0]
	for _, p := range b.papers {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	b.papers = kept
	if !found {
		return false
	}
	edges := b.edges[:0]
	for _, e := range b.edges {
		if e.Source == id || e.Target == id {
			continue
		}
		edges = append(edges, e)
	}
	b.edges = edges
	return true
}

func (b *Backend) cytoscape() api.Graph {
	elements := make([]api.Element, 0, len(b.papers)+len(b.edges))
	for _, p := range b.papers {
		label := p.Title
		if len(label) > 50 {
			label = label[:50] + "..."
		}
		elements = append(elements, api.Element{Data: map[string]any{
			"id":           p.ID,
			"label":        label,
			"title":        p.Title,
			"authors":      p.Authors,
			"key_concepts": p.KeyConcepts,
			"arxiv_url":    p.ArxivURL(),
			"pdf_url":      p.PDFURL,
		}})
	}
	for _, e := range b.edges {
		data := map[string]any{
			"id":     e.ID,
			"source": e.Source,
			"target": e.Target,
		}
		if e.Kind != "" {
			data["edge_type"] = e.Kind
		}
		if e.Evidence != "" {
			data["evidence"] = e.Evidence
		}
		elements = append(elements, api.Element{Data: data})
	}
	return api.Graph{Elements: elements}
}

func routeKey(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/papers/") && path != "/papers/select":
		path = "/papers/{id}"
	case strings.HasPrefix(path, "/edges/"):
		path = "/edges/{id}"
	}
	return r.Method + " " + path
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
