package api

import (
	"strings"
	"time"
)

// Citation is an unresolved reference extracted from a paper's bibliography.
type Citation struct {
	Title   string `json:"title"`
	ArxivID string `json:"arxiv_id,omitempty"`
	Author  string `json:"author,omitempty"`
}

// Paper mirrors the backend paper record.
type Paper struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Authors     []string   `json:"authors"`
	Summary     string     `json:"summary"`
	Published   string     `json:"published"`
	PDFURL      string     `json:"pdf_url"`
	KeyConcepts []string   `json:"key_concepts"`
	Citations   []Citation `json:"citations"`
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PublishedAt parses the backend timestamp, which may or may not carry a zone.
func (p Paper) PublishedAt() (time.Time, bool) {
	value := strings.TrimSpace(p.Published)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ArxivURL returns the abstract page for the paper.
func (p Paper) ArxivURL() string {
	return "https://arxiv.org/abs/" + p.ID
}

// PaperCandidate is a concrete paper the backend proposes for an ambiguous reference.
type PaperCandidate struct {
	ArxivID       string   `json:"arxiv_id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Year          int      `json:"year"`
	SourcePaperID string   `json:"source_paper_id,omitempty"`
}

// ChatResponse is returned by both /chat and /papers/select.
type ChatResponse struct {
	Message         string           `json:"message"`
	GraphUpdated    bool             `json:"graph_updated"`
	PapersAdded     []string         `json:"papers_added"`
	PaperCandidates []PaperCandidate `json:"paper_candidates"`
}

// HistoryEntry is one message of the server-side chat history.
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Element is a cytoscape element; nodes and edges share the shape.
type Element struct {
	Data map[string]any `json:"data"`
}

// IsEdge reports whether the element carries a source field.
func (e Element) IsEdge() bool {
	value, ok := e.Data["source"]
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString {
		return s != ""
	}
	return true
}

// String returns a string-valued data field, or "" when absent.
func (e Element) String(key string) string {
	value, ok := e.Data[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	default:
		return ""
	}
}

// Strings returns a list-valued data field.
func (e Element) Strings(key string) []string {
	raw, ok := e.Data[key].([]any)
	if !ok {
		if typed, ok := e.Data[key].([]string); ok {
			return append([]string(nil), typed...)
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Int returns a numeric data field; JSON numbers decode as float64.
func (e Element) Int(key string) int {
	switch v := e.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Graph is the /graph/cytoscape payload.
type Graph struct {
	Elements []Element `json:"elements"`
}
