// Package citations turns references found in a paper into graph additions.
package citations

import (
	"strings"

	"github.com/csheth/papergraph/internal/api"
)

// View picks one of a paper's reference lists.
type View int

const (
	// ViewCitations lists every extracted citation.
	ViewCitations View = iota
	// ViewArxiv lists only citations that carry an arXiv id.
	ViewArxiv
)

// Reference is one resolvable row of a reference list. Key is shared by every list the
// reference appears in.
type Reference struct {
	Key     string
	Title   string
	ArxivID string
	Author  string
}

// Query is what gets sent to the backend: the arXiv id when known, the title otherwise.
func (r Reference) Query() string {
	return r.Key
}

// ReferenceKey identifies a citation: its arXiv id when known, its title otherwise.
func ReferenceKey(c api.Citation) string {
	if id := strings.TrimSpace(c.ArxivID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Title)
}

// ReferenceList is a titled list of references. Lists that disambiguate hold backend
// candidates for a choice; the others treat candidates as no result.
type ReferenceList struct {
	Heading       string
	References    []Reference
	Disambiguates bool
}

// Find returns the reference with key.
func (l ReferenceList) Find(key string) (Reference, bool) {
	if key == "" {
		return Reference{}, false
	}
	for _, ref := range l.References {
		if ref.Key == key {
			return ref, true
		}
	}
	return Reference{}, false
}

// ListFor builds the reference list view shows for paper.
func ListFor(paper api.Paper, view View) ReferenceList {
	if view == ViewArxiv {
		return ArxivReferences(paper)
	}
	return Citations(paper)
}

// Citations lists every extracted citation of paper.
func Citations(paper api.Paper) ReferenceList {
	refs := make([]Reference, 0, len(paper.Citations))
	for _, c := range paper.Citations {
		refs = append(refs, Reference{
			Key:     ReferenceKey(c),
			Title:   c.Title,
			ArxivID: strings.TrimSpace(c.ArxivID),
			Author:  c.Author,
		})
	}
	return ReferenceList{Heading: "Citations", References: refs, Disambiguates: true}
}

// ArxivReferences lists only the citations that carry an arXiv id.
func ArxivReferences(paper api.Paper) ReferenceList {
	var refs []Reference
	for _, c := range paper.Citations {
		id := strings.TrimSpace(c.ArxivID)
		if id == "" {
			continue
		}
		refs = append(refs, Reference{Key: id, Title: c.Title, ArxivID: id, Author: c.Author})
	}
	return ReferenceList{Heading: "arXiv References", References: refs}
}

// Outcome classifies a select response.
type Outcome int

const (
	// OutcomeNone means nothing was added and there is nothing to choose from.
	OutcomeNone Outcome = iota
	// OutcomeAdded means the backend added at least one paper.
	OutcomeAdded
	// OutcomeCandidates means the backend needs a choice between candidates.
	OutcomeCandidates
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeCandidates:
		return "candidates"
	default:
		return "none"
	}
}

// Result is an interpreted select response.
type Result struct {
	Outcome    Outcome
	Message    string
	Added      []string
	Candidates []api.PaperCandidate
}

// Interpret reads a select response by shape: added papers win over candidates, and
// candidates only count when the caller can offer a choice.
func Interpret(resp api.ChatResponse, disambiguate bool) Result {
	result := Result{Message: resp.Message}
	switch {
	case len(resp.PapersAdded) > 0:
		result.Outcome = OutcomeAdded
		result.Added = append([]string(nil), resp.PapersAdded...)
	case disambiguate && len(resp.PaperCandidates) > 0:
		result.Outcome = OutcomeCandidates
		result.Candidates = append([]api.PaperCandidate(nil), resp.PaperCandidates...)
	}
	return result
}

// GraphChanged reports whether the workspace should refetch.
func (r Result) GraphChanged() bool {
	return r.Outcome == OutcomeAdded
}
