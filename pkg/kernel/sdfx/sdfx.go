// Package sdfx implements kernel.Kernel using the github.com/deadsy/sdfx
// SDF-based CAD library.
//
// SDFs carry no boundary representation, so topology is derived from the
// axis-aligned boxes a solid was composed from. Shapes are enumerated in
// geometric order (centroid X, then Y, then Z), which means a union with a
// new box renumbers the raw indices of existing shapes exactly the way a
// B-rep kernel renumbers after a boolean. Handles are the ShapeID of the
// box that produced each shape, so lineage survives renumbering.
package sdfx

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/topo"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel    = (*SdfxKernel)(nil)
	_ kernel.Historian = (*sdfxSolid)(nil)
)

// BackendName is the name this kernel registers under.
const BackendName = "sdfx"

func init() {
	kernel.Register(BackendName, func() (kernel.Kernel, error) { return New(), nil })
}

// boxPart is one axis-aligned box contributing topology to a solid.
type boxPart struct {
	feature  string
	min, max v3.Vec
}

// sdfxSolid wraps an sdf.SDF3 plus the boxes it was built from.
type sdfxSolid struct {
	s      sdf.SDF3
	parts  []boxPart
	shapes map[topo.ShapeType][]kernel.Shape
}

func newSolid(s sdf.SDF3, parts []boxPart) *sdfxSolid {
	solid := &sdfxSolid{s: s, parts: parts, shapes: make(map[topo.ShapeType][]kernel.Shape)}
	for _, t := range topo.ShapeTypes {
		var shapes []kernel.Shape
		for _, p := range parts {
			shapes = append(shapes, p.shapes(t)...)
		}
		sort.SliceStable(shapes, func(i, j int) bool {
			return lessShape(shapes[i], shapes[j])
		})
		solid.shapes[t] = shapes
	}
	return solid
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Shapes returns the enumeration of type t. The slice is shared; callers
// must not modify it.
func (s *sdfxSolid) Shapes(t topo.ShapeType) []kernel.Shape {
	return s.shapes[t]
}

// History exposes lineage keyed by origin handle.
func (s *sdfxSolid) History() (kernel.History, bool) {
	return lineage{solid: s}, true
}

// lineage resolves a handle to the shapes in the solid that descend from
// it. Box topology is never split, so a handle has at most one descendant
// per contributing box.
type lineage struct {
	solid *sdfxSolid
}

func (l lineage) Descendants(h topo.Handle) []topo.Handle {
	id, err := topo.ParseShapeID(string(h))
	if err != nil {
		return nil
	}
	var out []topo.Handle
	for _, sh := range l.solid.shapes[id.ShapeType] {
		if sh.Handle == h {
			out = append(out, sh.Handle)
		}
	}
	return out
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// unwrap extracts the underlying solid from a kernel.Solid.
func unwrap(s kernel.Solid) (*sdfxSolid, error) {
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil {
		return nil, fmt.Errorf("sdfx: foreign solid %T", s)
	}
	return ss, nil
}

// Box creates a box owned by featureID with its minimum corner at the
// origin. sdf.Box3D centers the box at the origin, so it is translated by
// half-dimensions.
func (k *SdfxKernel) Box(featureID string, x, y, z float64) (kernel.Solid, error) {
	if featureID == "" {
		return nil, errors.New("sdfx: box needs an owning feature id")
	}
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("sdfx: box %s has non-positive size %.4fx%.4fx%.4f", featureID, x, y, z)
	}
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	part := boxPart{feature: featureID, min: v3.Vec{}, max: v3.Vec{X: x, Y: y, Z: z}}
	return newSolid(sdf.Transform3D(s, m), []boxPart{part}), nil
}

// Translate moves a solid by (x, y, z). Handles are preserved.
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	d := v3.Vec{X: x, Y: y, Z: z}
	parts := make([]boxPart, len(ss.parts))
	for i, p := range ss.parts {
		parts[i] = boxPart{feature: p.feature, min: p.min.Add(d), max: p.max.Add(d)}
	}
	return newSolid(sdf.Transform3D(ss.s, sdf.Translate3d(d)), parts), nil
}

// Union returns the union of two solids. Topology of both operands is kept
// and re-enumerated in geometric order.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	parts := make([]boxPart, 0, len(sa.parts)+len(sb.parts))
	parts = append(parts, sa.parts...)
	parts = append(parts, sb.parts...)
	return newSolid(sdf.Union3D(sa.s, sb.s), parts), nil
}

// shapes derives the box's faces, edges or vertices. Local ids are fixed
// per box: faces -X,+X,-Y,+Y,-Z,+Z; edges grouped by axis; vertices by
// corner bit pattern.
func (p boxPart) shapes(t topo.ShapeType) []kernel.Shape {
	lo := [3]float64{p.min.X, p.min.Y, p.min.Z}
	hi := [3]float64{p.max.X, p.max.Y, p.max.Z}
	var mid, dim [3]float64
	for i := range mid {
		mid[i] = (lo[i] + hi[i]) / 2
		dim[i] = hi[i] - lo[i]
	}

	var out []kernel.Shape
	add := func(local int, c, d [3]float64, size float64) {
		id := topo.ShapeID{FeatureID: p.feature, LocalID: local, ShapeType: t}
		out = append(out, kernel.Shape{
			Handle:    topo.Handle(id.String()),
			Origin:    id,
			Centroid:  vec(c),
			Direction: vec(d),
			Size:      size,
		})
	}

	switch t {
	case topo.ShapeFace:
		for axis := 0; axis < 3; axis++ {
			u, w := (axis+1)%3, (axis+2)%3
			for side := 0; side < 2; side++ {
				c := mid
				var n [3]float64
				if side == 0 {
					c[axis] = lo[axis]
					n[axis] = -1
				} else {
					c[axis] = hi[axis]
					n[axis] = 1
				}
				add(axis*2+side, c, n, math.Sqrt(dim[u]*dim[w]))
			}
		}
	case topo.ShapeEdge:
		for axis := 0; axis < 3; axis++ {
			u, w := (axis+1)%3, (axis+2)%3
			for k := 0; k < 4; k++ {
				c := mid
				c[u] = pick(lo[u], hi[u], k&1)
				c[w] = pick(lo[w], hi[w], k&2)
				var d [3]float64
				d[axis] = 1
				add(axis*4+k, c, d, dim[axis])
			}
		}
	case topo.ShapeVertex:
		for k := 0; k < 8; k++ {
			c := [3]float64{pick(lo[0], hi[0], k&1), pick(lo[1], hi[1], k&2), pick(lo[2], hi[2], k&4)}
			add(k, c, [3]float64{}, 0)
		}
	}
	return out
}

func pick(lo, hi float64, bit int) float64 {
	if bit != 0 {
		return hi
	}
	return lo
}

func vec(a [3]float64) v3.Vec {
	return v3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

// lessShape orders shapes by centroid, breaking exact ties by handle so the
// enumeration is total.
func lessShape(a, b kernel.Shape) bool {
	if a.Centroid.X != b.Centroid.X {
		return a.Centroid.X < b.Centroid.X
	}
	if a.Centroid.Y != b.Centroid.Y {
		return a.Centroid.Y < b.Centroid.Y
	}
	if a.Centroid.Z != b.Centroid.Z {
		return a.Centroid.Z < b.Centroid.Z
	}
	return a.Handle < b.Handle
}
