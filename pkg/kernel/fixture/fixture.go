// Package fixture provides an in-memory kernel.Solid with explicit shapes
// and lineage. It stands in for a real kernel in tests and demos where the
// exact enumeration order and history need to be controlled.
package fixture

import (
	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Solid is a hand-assembled solid. Build it with the chained helpers, then
// treat it as read-only.
type Solid struct {
	shapes     map[topo.ShapeType][]kernel.Shape
	lineage    map[topo.Handle][]topo.Handle
	hasHistory bool
}

var (
	_ kernel.Solid     = (*Solid)(nil)
	_ kernel.Historian = (*Solid)(nil)
)

// New returns an empty solid that exposes history.
func New() *Solid {
	return &Solid{
		shapes:     make(map[topo.ShapeType][]kernel.Shape),
		lineage:    make(map[topo.Handle][]topo.Handle),
		hasHistory: true,
	}
}

// Add appends a shape to the enumeration of its type. The handle defaults
// to the origin ShapeID string.
func (s *Solid) Add(sh kernel.Shape) *Solid {
	if sh.Handle == "" {
		sh.Handle = topo.Handle(sh.Origin.String())
	}
	s.shapes[sh.Type()] = append(s.shapes[sh.Type()], sh)
	return s
}

// Edge appends an edge owned by feature with the given local id, midpoint,
// direction and length.
func (s *Solid) Edge(feature string, local int, mid, dir v3.Vec, length float64) *Solid {
	return s.Add(kernel.Shape{
		Origin:    topo.ShapeID{FeatureID: feature, LocalID: local, ShapeType: topo.ShapeEdge},
		Centroid:  mid,
		Direction: dir,
		Size:      length,
	})
}

// Face appends a face owned by feature.
func (s *Solid) Face(feature string, local int, centroid, normal v3.Vec, size float64) *Solid {
	return s.Add(kernel.Shape{
		Origin:    topo.ShapeID{FeatureID: feature, LocalID: local, ShapeType: topo.ShapeFace},
		Centroid:  centroid,
		Direction: normal,
		Size:      size,
	})
}

// Derive records that each handle in to descends from from.
func (s *Solid) Derive(from topo.Handle, to ...topo.Handle) *Solid {
	s.lineage[from] = append(s.lineage[from], to...)
	return s
}

// WithoutHistory turns off the lineage capability.
func (s *Solid) WithoutHistory() *Solid {
	s.hasHistory = false
	return s
}

// Swap exchanges the enumeration positions i and j of type t, simulating a
// kernel renumbering.
func (s *Solid) Swap(t topo.ShapeType, i, j int) *Solid {
	sh := s.shapes[t]
	sh[i], sh[j] = sh[j], sh[i]
	return s
}

// Clone returns a deep copy so a test can derive a "rebuilt" solid.
func (s *Solid) Clone() *Solid {
	c := New()
	c.hasHistory = s.hasHistory
	for t, shapes := range s.shapes {
		c.shapes[t] = append([]kernel.Shape(nil), shapes...)
	}
	for h, to := range s.lineage {
		c.lineage[h] = append([]topo.Handle(nil), to...)
	}
	return c
}

// BoundingBox returns the box spanned by all shape centroids.
func (s *Solid) BoundingBox() (min, max [3]float64) {
	first := true
	for _, t := range topo.ShapeTypes {
		for _, sh := range s.shapes[t] {
			p := [3]float64{sh.Centroid.X, sh.Centroid.Y, sh.Centroid.Z}
			for i := range p {
				if first || p[i] < min[i] {
					min[i] = p[i]
				}
				if first || p[i] > max[i] {
					max[i] = p[i]
				}
			}
			first = false
		}
	}
	return min, max
}

// Shapes returns the enumeration of type t.
func (s *Solid) Shapes(t topo.ShapeType) []kernel.Shape {
	return s.shapes[t]
}

// History returns the lineage capability when enabled.
func (s *Solid) History() (kernel.History, bool) {
	if !s.hasHistory {
		return nil, false
	}
	return history{lineage: s.lineage}, true
}

type history struct {
	lineage map[topo.Handle][]topo.Handle
}

// Descendants walks the lineage transitively. A handle without recorded
// children is its own (only) descendant.
func (h history) Descendants(root topo.Handle) []topo.Handle {
	var out []topo.Handle
	seen := map[topo.Handle]bool{}
	var walk func(topo.Handle)
	walk = func(x topo.Handle) {
		if seen[x] {
			return
		}
		seen[x] = true
		children := h.lineage[x]
		if len(children) == 0 {
			out = append(out, x)
			return
		}
		for _, c := range children {
			walk(c)
		}
	}
	walk(root)
	return out
}
