package graph

import (
	"sync"
)

// Viewport limits. Fit leaves FitPadding around the nodes and never zooms past
// MaxFitZoom; manual zoom stays within MinZoom and MaxZoom.
const (
	FitPadding  = 50
	MaxFitZoom  = 1.5
	MinZoom     = 0.2
	MaxZoom     = 3.0
	ZoomInStep  = 1.2
	ZoomOutStep = 0.8
)

// Renderer is the drawing capability the projection drives: it holds a node/edge set,
// lays it out and exposes a zoomable viewport.
type Renderer interface {
	Clear()
	Add(nodes []Node, edges []Edge)
	Layout()
	Fit(padding float64)
	Zoom() float64
	SetZoom(zoom float64)
	Center()
}

// Projection mirrors the latest element set onto a Renderer and tracks the selected edge.
type Projection struct {
	renderer Renderer

	mu       sync.Mutex
	counts   Counts
	nodes    []Node
	edges    []Edge
	selected *Edge

	onNodeClick func(id string)
	onEdgeClick func(Edge)
}

// NewProjection wraps renderer.
func NewProjection(renderer Renderer) *Projection {
	return &Projection{renderer: renderer}
}

// OnNodeClick registers the handler fired when a node is tapped.
func (p *Projection) OnNodeClick(fn func(id string)) {
	p.mu.Lock()
	p.onNodeClick = fn
	p.mu.Unlock()
}

// OnEdgeClick registers the handler fired when an edge is tapped.
func (p *Projection) OnEdgeClick(fn func(Edge)) {
	p.mu.Lock()
	p.onEdgeClick = fn
	p.mu.Unlock()
}

// Apply replaces everything on the renderer with set. Edges are kept only when both
// endpoints are drawn and known reports them present; a nil known skips the second check.
func (p *Projection) Apply(set ElementSet, known func(id string) bool) {
	drawn := make(map[string]bool, len(set.Nodes))
	for _, n := range set.Nodes {
		drawn[n.ID] = true
	}
	edges := FilterDangling(set.Edges, func(id string) bool {
		return drawn[id] && (known == nil || known(id))
	})
	nodes := append([]Node(nil), set.Nodes...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = set.Counts()
	p.nodes = nodes
	p.edges = edges
	if p.selected != nil && !containsEdge(edges, p.selected.ID) {
		p.selected = nil
	}

	p.renderer.Clear()
	p.renderer.Add(nodes, edges)
	p.renderer.Layout()
	p.fitLocked()
}

// FitView re-applies the post-layout viewport policy.
func (p *Projection) FitView() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fitLocked()
}

func (p *Projection) fitLocked() {
	p.renderer.Fit(FitPadding)
	if p.renderer.Zoom() > MaxFitZoom {
		p.renderer.SetZoom(MaxFitZoom)
		p.renderer.Center()
	}
}

// ZoomIn scales the viewport up by one step.
func (p *Projection) ZoomIn() {
	p.zoomBy(ZoomInStep)
}

// ZoomOut scales the viewport down by one step.
func (p *Projection) ZoomOut() {
	p.zoomBy(ZoomOutStep)
}

func (p *Projection) zoomBy(factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderer.SetZoom(clampZoom(p.renderer.Zoom() * factor))
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Counts returns the raw partition sizes of the last applied set.
func (p *Projection) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts
}

// Nodes returns the drawn nodes.
func (p *Projection) Nodes() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Node(nil), p.nodes...)
}

// Edges returns the drawn edges.
func (p *Projection) Edges() []Edge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Edge(nil), p.edges...)
}

// TapNode fires the node handler for a drawn node.
func (p *Projection) TapNode(id string) {
	p.mu.Lock()
	handler := p.onNodeClick
	found := false
	for _, n := range p.nodes {
		if n.ID == id {
			found = true
			break
		}
	}
	p.mu.Unlock()
	if found && handler != nil {
		handler(id)
	}
}

// TapEdge selects a drawn edge and fires the edge handler.
func (p *Projection) TapEdge(id string) {
	p.mu.Lock()
	var hit *Edge
	for i := range p.edges {
		if p.edges[i].ID == id {
			edge := p.edges[i]
			hit = &edge
			break
		}
	}
	if hit == nil {
		p.mu.Unlock()
		return
	}
	p.selected = hit
	handler := p.onEdgeClick
	p.mu.Unlock()
	if handler != nil {
		handler(*hit)
	}
}

// TapBackground clears the edge selection.
func (p *Projection) TapBackground() {
	p.DismissEdge()
}

// DismissEdge clears the edge selection.
func (p *Projection) DismissEdge() {
	p.mu.Lock()
	p.selected = nil
	p.mu.Unlock()
}

// SelectedEdge returns the edge whose details are shown, if any.
func (p *Projection) SelectedEdge() (Edge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selected == nil {
		return Edge{}, false
	}
	return *p.selected, true
}

func containsEdge(edges []Edge, id string) bool {
	for _, e := range edges {
		if e.ID == id {
			return true
		}
	}
	return false
}
