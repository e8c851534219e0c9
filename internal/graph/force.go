package graph

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"
)

// LayoutParams tunes the force-directed layout.
type LayoutParams struct {
	IdealEdgeLength float64
	NodeRepulsion   float64
	Gravity         float64
	Iterations      int
}

// DefaultLayoutParams returns the settings used by the canvas.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		IdealEdgeLength: 100,
		NodeRepulsion:   8000,
		Gravity:         0.25,
		Iterations:      300,
	}
}

// Point is a position in layout space.
type Point struct {
	X, Y float64
}

// ForceLayout positions nodes with a spring-electrical simulation. The same node and
// edge set always produces the same positions.
func ForceLayout(nodes []Node, edges []Edge, params LayoutParams) map[string]Point {
	positions := make(map[string]Point, len(nodes))
	if len(nodes) == 0 {
		return positions
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := positions[n.ID]; dup {
			continue
		}
		positions[n.ID] = Point{}
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	if len(ids) == 1 {
		return positions
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	rng := rand.New(rand.NewPCG(seedFor(ids), uint64(len(ids))))
	spread := params.IdealEdgeLength * math.Sqrt(float64(len(ids)))
	pos := make([]Point, len(ids))
	for i := range pos {
		pos[i] = Point{X: (rng.Float64() - 0.5) * spread, Y: (rng.Float64() - 0.5) * spread}
	}

	type link struct{ a, b int }
	links := make([]link, 0, len(edges))
	for _, e := range edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if okA && okB && a != b {
			links = append(links, link{a, b})
		}
	}

	k := params.IdealEdgeLength
	iterations := params.Iterations
	if iterations <= 0 {
		iterations = 1
	}
	disp := make([]Point, len(ids))
	for iter := 0; iter < iterations; iter++ {
		temperature := k * (1 - float64(iter)/float64(iterations))
		for i := range disp {
			disp[i] = Point{}
		}

		for i := 0; i < len(pos); i++ {
			for j := i + 1; j < len(pos); j++ {
				dx, dy, d := delta(pos[i], pos[j], i, j)
				force := params.NodeRepulsion * k / (d * d)
				fx, fy := dx/d*force, dy/d*force
				disp[i].X += fx
				disp[i].Y += fy
				disp[j].X -= fx
				disp[j].Y -= fy
			}
		}

		for _, l := range links {
			dx, dy, d := delta(pos[l.a], pos[l.b], l.a, l.b)
			force := d * d / k
			fx, fy := dx/d*force, dy/d*force
			disp[l.a].X -= fx
			disp[l.a].Y -= fy
			disp[l.b].X += fx
			disp[l.b].Y += fy
		}

		for i := range pos {
			disp[i].X -= params.Gravity * pos[i].X
			disp[i].Y -= params.Gravity * pos[i].Y

			length := math.Hypot(disp[i].X, disp[i].Y)
			if length == 0 {
				continue
			}
			step := math.Min(length, temperature)
			pos[i].X += disp[i].X / length * step
			pos[i].Y += disp[i].Y / length * step
		}
	}

	for i, id := range ids {
		positions[id] = pos[i]
	}
	return positions
}

// delta returns the vector from b to a and its length, nudging coincident points apart.
func delta(a, b Point, i, j int) (float64, float64, float64) {
	dx, dy := a.X-b.X, a.Y-b.Y
	d := math.Hypot(dx, dy)
	if d < 0.01 {
		angle := float64(i*7+j*13) * 0.618
		dx, dy = math.Cos(angle)*0.01, math.Sin(angle)*0.01
		d = 0.01
	}
	return dx, dy, d
}

func seedFor(ids []string) uint64 {
	h := fnv.New64a()
	for _, id := range ids {
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
