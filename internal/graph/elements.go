// Package graph turns the backend's cytoscape element list into something a renderer
// can draw, and owns the viewport policy around it.
package graph

import (
	"strings"

	"github.com/csheth/papergraph/internal/api"
)

// Kind is an edge's relationship type.
type Kind string

const (
	KindCitation Kind = "citation"
	KindSemantic Kind = "semantic"
)

// NormalizeKind folds the backend's edge_type aliases. Unknown kinds are kept verbatim.
func NormalizeKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "citation":
		return KindCitation
	case "semantic", "shared_concepts":
		return KindSemantic
	default:
		return Kind(raw)
	}
}

// Style returns the kind used for drawing; anything that is not a citation looks semantic.
func (k Kind) Style() Kind {
	if k == KindCitation {
		return KindCitation
	}
	return KindSemantic
}

// Node is a paper as drawn in the graph.
type Node struct {
	ID          string
	Label       string
	Title       string
	Authors     []string
	KeyConcepts []string
	ArxivURL    string
	PDFURL      string
}

// Edge is a relationship between two papers.
type Edge struct {
	ID       string
	Source   string
	Target   string
	Kind     Kind
	Evidence string
}

// ElementSet is a partitioned element list.
type ElementSet struct {
	Nodes []Node
	Edges []Edge
}

// Counts are the partition sizes shown in the graph header.
type Counts struct {
	Nodes int
	Edges int
}

// Partition splits raw elements: anything with a source is an edge, the rest are nodes.
func Partition(elements []api.Element) ElementSet {
	var set ElementSet
	for _, el := range elements {
		if el.IsEdge() {
			set.Edges = append(set.Edges, Edge{
				ID:       el.String("id"),
				Source:   el.String("source"),
				Target:   el.String("target"),
				Kind:     NormalizeKind(el.String("edge_type")),
				Evidence: el.String("evidence"),
			})
			continue
		}
		id := el.String("id")
		label := el.String("label")
		if label == "" {
			label = id
		}
		set.Nodes = append(set.Nodes, Node{
			ID:          id,
			Label:       label,
			Title:       el.String("title"),
			Authors:     el.Strings("authors"),
			KeyConcepts: el.Strings("key_concepts"),
			ArxivURL:    el.String("arxiv_url"),
			PDFURL:      el.String("pdf_url"),
		})
	}
	return set
}

// Counts returns the partition sizes.
func (s ElementSet) Counts() Counts {
	return Counts{Nodes: len(s.Nodes), Edges: len(s.Edges)}
}

// FilterDangling drops edges whose endpoints are not both known.
func FilterDangling(edges []Edge, known func(id string) bool) []Edge {
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if known(e.Source) && known(e.Target) {
			kept = append(kept, e)
		}
	}
	return kept
}
