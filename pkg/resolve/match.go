package resolve

import (
	"math"

	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// matchScore compares a recorded selector with a current shape. Lower is
// better; ok is false when any tolerance is exceeded. Each shape type has
// its own rule:
//   - faces: centroid, signed normal, size
//   - edges: centroid, unsigned tangent, length
//   - vertices: centroid only
func (r *Resolver) matchScore(t topo.ShapeType, sel topo.GeometricSelector, sh kernel.Shape) (score float64, ok bool) {
	dist := sel.Centroid.Sub(sh.Centroid).Length()
	if dist > r.tol.CentroidDistance {
		return 0, false
	}
	score = dist / r.tol.CentroidDistance

	switch t {
	case topo.ShapeFace:
		return r.directional(score, sel, sh, false)
	case topo.ShapeEdge:
		return r.directional(score, sel, sh, true)
	case topo.ShapeVertex:
		return score, true
	default:
		return 0, false
	}
}

func (r *Resolver) directional(score float64, sel topo.GeometricSelector, sh kernel.Shape, unsigned bool) (float64, bool) {
	if a, ok := alignment(sel.Direction, sh.Direction, unsigned); ok {
		if a < r.tol.DirectionAlignment {
			return 0, false
		}
		score += 1 - a
	}
	d := sizeDelta(sel.Size, sh.Size)
	if d > r.tol.SizeRelative {
		return 0, false
	}
	return score + d, true
}

// alignment is the cosine between a and b. ok is false when either vector
// is degenerate, in which case direction is not part of the comparison.
func alignment(a, b v3.Vec, unsigned bool) (float64, bool) {
	la, lb := a.Length(), b.Length()
	if la == 0 || lb == 0 {
		return 0, false
	}
	cos := a.Dot(b) / (la * lb)
	if unsigned {
		cos = math.Abs(cos)
	}
	return math.Min(cos, 1), true
}

func sizeDelta(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 0
	}
	return math.Abs(a-b) / m
}
