// Package resolve maps stored shape references onto a freshly computed
// solid. Strategies run in a fixed order and the first one that produces a
// unique shape wins:
//
//  1. history: follow the kernel's lineage from the bound native handle
//  2. geometric: best selector match within tolerance
//  3. legacy: nearest shape to a point selector
//
// ResolveSlot adds the raw index as a fourth, index-only fallback and
// applies the single-slot conflict rule, reporting anything it could not
// settle as a classify.Candidate.
package resolve

import (
	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/topo"
	"go.uber.org/zap"
)

// Resolver runs the strategy cascade. It holds no per-call state and is
// safe for concurrent use.
type Resolver struct {
	tol    Tolerances
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger routes strategy decisions to l at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a resolver using tol.
func New(tol Tolerances, opts ...Option) *Resolver {
	r := &Resolver{tol: tol, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs history, geometric and legacy strategies for ref against
// solid. hist may be nil when the kernel exposes no lineage. The shape
// type is taken from ref.RefID.
func (r *Resolver) Resolve(ref topo.ShapeReference, solid kernel.Solid, hist kernel.History) topo.ResolutionResult {
	return r.resolve(ref.RefID.ShapeType, ref, solid, hist)
}

func (r *Resolver) resolve(t topo.ShapeType, ref topo.ShapeReference, solid kernel.Solid, hist kernel.History) topo.ResolutionResult {
	if solid == nil || !t.Valid() {
		return topo.Unresolved()
	}
	shapes := solid.Shapes(t)

	if hist != nil && ref.NativeHandle != "" {
		if i, ok := byHistory(shapes, hist.Descendants(ref.NativeHandle)); ok {
			r.logger.Debug("resolved by history",
				zap.Stringer("ref", ref.RefID),
				zap.Int("index", i))
			return topo.ResolutionResult{
				Index:      i,
				Shape:      shapes[i].Handle,
				Strategy:   topo.StrategyHistory,
				Confidence: topo.ConfidenceStrong,
			}
		}
	}

	if !ref.Geometric.IsZero() {
		if i, ok := r.byGeometry(t, ref.Geometric, shapes); ok {
			r.logger.Debug("resolved by geometric selector",
				zap.Stringer("ref", ref.RefID),
				zap.Int("index", i))
			return topo.ResolutionResult{
				Index:    i,
				Shape:    shapes[i].Handle,
				Strategy: topo.StrategyGeometric,
			}
		}
	}

	if ref.Legacy != nil {
		if i, ok := r.byLegacy(*ref.Legacy, shapes); ok {
			r.logger.Debug("resolved by legacy point",
				zap.Stringer("ref", ref.RefID),
				zap.Int("index", i))
			return topo.ResolutionResult{
				Index:    i,
				Shape:    shapes[i].Handle,
				Strategy: topo.StrategyLegacy,
			}
		}
	}

	r.logger.Debug("reference unresolved", zap.Stringer("ref", ref.RefID))
	return topo.Unresolved()
}

// byHistory succeeds only when the descendants of the bound handle map to
// exactly one current shape. A split shape (several descendants) is
// ambiguous and left to the weaker strategies.
func byHistory(shapes []kernel.Shape, descendants []topo.Handle) (int, bool) {
	if len(descendants) == 0 {
		return -1, false
	}
	want := make(map[topo.Handle]struct{}, len(descendants))
	for _, h := range descendants {
		want[h] = struct{}{}
	}
	found := -1
	for i, sh := range shapes {
		if _, ok := want[sh.Handle]; !ok {
			continue
		}
		if found >= 0 {
			return -1, false
		}
		found = i
	}
	return found, found >= 0
}

func (r *Resolver) byGeometry(t topo.ShapeType, sel topo.GeometricSelector, shapes []kernel.Shape) (int, bool) {
	best, bestScore := -1, 0.0
	for i, sh := range shapes {
		score, ok := r.matchScore(t, sel, sh)
		if !ok {
			continue
		}
		// Strictly better only: ties keep the lower index.
		if best < 0 || score < bestScore {
			best, bestScore = i, score
		}
	}
	return best, best >= 0
}

func (r *Resolver) byLegacy(sel topo.LegacySelector, shapes []kernel.Shape) (int, bool) {
	best, bestDist := -1, 0.0
	for i, sh := range shapes {
		d := sel.Point.Sub(sh.Centroid).Length()
		if d > r.tol.LegacyPointDistance {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0
}

// Capture builds a reference to the shape at index of type t in solid, so
// that later rebuilds can follow it by lineage or geometry. ok is false
// when index is out of range.
func Capture(solid kernel.Solid, t topo.ShapeType, index int) (topo.ShapeReference, bool) {
	if solid == nil || index < 0 {
		return topo.ShapeReference{}, false
	}
	shapes := solid.Shapes(t)
	if index >= len(shapes) {
		return topo.ShapeReference{}, false
	}
	sh := shapes[index]
	return topo.ShapeReference{
		RefID:        sh.Origin,
		NativeHandle: sh.Handle,
		Geometric: topo.GeometricSelector{
			Centroid:  sh.Centroid,
			Direction: sh.Direction,
			Size:      sh.Size,
		},
	}, true
}
