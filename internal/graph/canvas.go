package graph

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	// Layout units covered by one terminal cell at zoom 1. Cells are roughly twice as
	// tall as they are wide.
	cellWidth  = 6.0
	cellHeight = 12.0

	canvasLabelLimit = 16
)

// Edge colours match the legend.
const (
	CitationColor = lipgloss.Color("#4A9D9A")
	SemanticColor = lipgloss.Color("#8B5CF6")
)

type cellStyle int

const (
	styleBlank cellStyle = iota
	styleCitation
	styleSemantic
	styleSelectedEdge
	styleNode
	styleFocusedNode
	styleLabel
)

var canvasStyles = map[cellStyle]lipgloss.Style{
	styleCitation:     lipgloss.NewStyle().Foreground(CitationColor),
	styleSemantic:     lipgloss.NewStyle().Foreground(SemanticColor),
	styleSelectedEdge: lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
	styleNode:         lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Bold(true),
	styleFocusedNode:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
	styleLabel:        lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
}

type cell struct {
	r     rune
	style cellStyle
}

// Canvas draws a force-directed graph onto a character grid. It implements Renderer.
type Canvas struct {
	mu sync.Mutex

	width, height int
	params        LayoutParams

	nodes     []Node
	edges     []Edge
	positions map[string]Point

	zoom float64
	pan  Point

	focusedNode  string
	selectedEdge string
}

// NewCanvas returns an empty canvas of the given size in cells.
func NewCanvas(width, height int) *Canvas {
	c := &Canvas{params: DefaultLayoutParams(), zoom: 1, positions: map[string]Point{}}
	c.Resize(width, height)
	return c
}

// Resize changes the drawing area. The viewport is not refitted.
func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = max(width, 1)
	c.height = max(height, 1)
}

// Size returns the drawing area in cells.
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Clear drops every node, edge and position.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = nil
	c.edges = nil
	c.positions = map[string]Point{}
}

// Add queues nodes and edges for the next Layout.
func (c *Canvas) Add(nodes []Node, edges []Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, nodes...)
	c.edges = append(c.edges, edges...)
}

// Layout positions the current nodes with the force layout.
func (c *Canvas) Layout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions = ForceLayout(c.nodes, c.edges, c.params)
}

// Fit zooms and pans so every node is visible with padding to spare.
func (c *Canvas) Fit(padding float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	minP, maxP, ok := c.bounds()
	if !ok {
		c.zoom = 1
		c.pan = Point{}
		return
	}
	w := maxP.X - minP.X + 2*padding
	h := maxP.Y - minP.Y + 2*padding
	c.zoom = math.Min(float64(c.width)*cellWidth/w, float64(c.height)*cellHeight/h)
	c.pan = Point{X: (minP.X + maxP.X) / 2, Y: (minP.Y + maxP.Y) / 2}
}

// Zoom returns the current zoom level.
func (c *Canvas) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// SetZoom sets the zoom level as given; callers clamp.
func (c *Canvas) SetZoom(zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = zoom
}

// Center pans to the middle of the laid out nodes.
func (c *Canvas) Center() {
	c.mu.Lock()
	defer c.mu.Unlock()
	minP, maxP, ok := c.bounds()
	if !ok {
		c.pan = Point{}
		return
	}
	c.pan = Point{X: (minP.X + maxP.X) / 2, Y: (minP.Y + maxP.Y) / 2}
}

// Pan shifts the viewport by whole cells.
func (c *Canvas) Pan(dx, dy int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pan.X += float64(dx) * cellWidth / c.zoom
	c.pan.Y += float64(dy) * cellHeight / c.zoom
}

// Highlight marks the keyboard-focused node and the selected edge.
func (c *Canvas) Highlight(nodeID, edgeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focusedNode = nodeID
	c.selectedEdge = edgeID
}

// Position returns a node's layout coordinates.
func (c *Canvas) Position(id string) (Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.positions[id]
	return p, ok
}

func (c *Canvas) bounds() (Point, Point, bool) {
	if len(c.positions) == 0 {
		return Point{}, Point{}, false
	}
	minP := Point{X: math.Inf(1), Y: math.Inf(1)}
	maxP := Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range c.positions {
		minP.X = math.Min(minP.X, p.X)
		minP.Y = math.Min(minP.Y, p.Y)
		maxP.X = math.Max(maxP.X, p.X)
		maxP.Y = math.Max(maxP.Y, p.Y)
	}
	return minP, maxP, true
}

func (c *Canvas) project(p Point) (int, int) {
	col := (p.X-c.pan.X)*c.zoom/cellWidth + float64(c.width)/2
	row := (p.Y-c.pan.Y)*c.zoom/cellHeight + float64(c.height)/2
	return int(math.Floor(col)), int(math.Floor(row))
}

// NodeAt returns the node whose marker or label covers the cell.
func (c *Canvas) NodeAt(col, row int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.nodes) - 1; i >= 0; i-- {
		n := c.nodes[i]
		p, ok := c.positions[n.ID]
		if !ok {
			continue
		}
		x, y := c.project(p)
		if row == y && col >= x && col <= x+1+len([]rune(canvasLabel(n))) {
			return n.ID, true
		}
	}
	return "", false
}

// EdgeAt returns the edge drawn through the cell.
func (c *Canvas) EdgeAt(col, row int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.edges {
		from, okA := c.positions[e.Source]
		to, okB := c.positions[e.Target]
		if !okA || !okB {
			continue
		}
		x0, y0 := c.project(from)
		x1, y1 := c.project(to)
		hit := false
		line(x0, y0, x1, y1, func(x, y int) {
			if x == col && y == row {
				hit = true
			}
		})
		if hit {
			return e.ID, true
		}
	}
	return "", false
}

// Render draws the current viewport.
func (c *Canvas) Render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	grid := make([][]cell, c.height)
	for y := range grid {
		grid[y] = make([]cell, c.width)
		for x := range grid[y] {
			grid[y][x] = cell{r: ' '}
		}
	}
	put := func(x, y int, r rune, style cellStyle) {
		if y < 0 || y >= c.height || x < 0 || x >= c.width {
			return
		}
		grid[y][x] = cell{r: r, style: style}
	}

	for _, e := range c.edges {
		from, okA := c.positions[e.Source]
		to, okB := c.positions[e.Target]
		if !okA || !okB {
			continue
		}
		style := styleSemantic
		if e.Kind.Style() == KindCitation {
			style = styleCitation
		}
		glyph := '·'
		if e.ID == c.selectedEdge {
			style = styleSelectedEdge
			glyph = '•'
		}
		x0, y0 := c.project(from)
		x1, y1 := c.project(to)
		line(x0, y0, x1, y1, func(x, y int) { put(x, y, glyph, style) })
	}

	for _, n := range c.nodes {
		p, ok := c.positions[n.ID]
		if !ok {
			continue
		}
		x, y := c.project(p)
		style := styleNode
		if n.ID == c.focusedNode {
			style = styleFocusedNode
		}
		put(x, y, '●', style)
		labelStyle := styleLabel
		if n.ID == c.focusedNode {
			labelStyle = styleFocusedNode
		}
		for i, r := range []rune(canvasLabel(n)) {
			put(x+2+i, y, r, labelStyle)
		}
	}

	rows := make([]string, c.height)
	for y, cells := range grid {
		rows[y] = renderRow(cells)
	}
	return strings.Join(rows, "\n")
}

func renderRow(cells []cell) string {
	var b strings.Builder
	start := 0
	for i := 1; i <= len(cells); i++ {
		if i < len(cells) && cells[i].style == cells[start].style {
			continue
		}
		run := make([]rune, 0, i-start)
		for _, c := range cells[start:i] {
			run = append(run, c.r)
		}
		if style, ok := canvasStyles[cells[start].style]; ok {
			b.WriteString(style.Render(string(run)))
		} else {
			b.WriteString(string(run))
		}
		start = i
	}
	return b.String()
}

func canvasLabel(n Node) string {
	label := []rune(n.Label)
	if len(label) > canvasLabelLimit {
		return string(label[:canvasLabelLimit-1]) + "…"
	}
	return string(label)
}

// line walks the cells between two points (Bresenham).
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
