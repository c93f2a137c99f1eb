package rebuild

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/toponame/pkg/graph"
	"github.com/chazu/toponame/pkg/kernel"
)

// KernelSource builds solids for a graph with a kernel backend. Bodies
// are built once and cached; a reference feature selects from the union
// of its upstream bodies, in declaration order.
type KernelSource struct {
	k kernel.Kernel
	g *graph.FeatureGraph

	mu     sync.Mutex
	bodies map[graph.FeatureID]kernel.Solid
}

var _ SolidSource = (*KernelSource)(nil)

// NewKernelSource returns a source for g backed by k.
func NewKernelSource(k kernel.Kernel, g *graph.FeatureGraph) *KernelSource {
	return &KernelSource{k: k, g: g, bodies: make(map[graph.FeatureID]kernel.Solid)}
}

// Solid implements SolidSource.
func (s *KernelSource) Solid(ctx context.Context, f *graph.Feature) (kernel.Solid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Class.IsBody() {
		return s.body(f)
	}

	var out kernel.Solid
	for _, up := range s.g.Ancestors(f.ID) {
		if !up.Class.IsBody() {
			continue
		}
		b, err := s.body(up)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = b
			continue
		}
		if out, err = s.k.Union(out, b); err != nil {
			return nil, fmt.Errorf("union %s into %s: %w", up.ID, f.ID, err)
		}
	}
	if out == nil {
		return nil, fmt.Errorf("%s has no upstream body: %w", f.ID, kernel.ErrUnavailable)
	}
	return out, nil
}

func (s *KernelSource) body(f *graph.Feature) (kernel.Solid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bodies[f.ID]; ok {
		return b, nil
	}

	d, ok := f.Data.(graph.BoxData)
	if !ok {
		return nil, fmt.Errorf("body %s has %T data", f.ID, f.Data)
	}
	b, err := s.k.Box(string(f.ID), d.Size.X, d.Size.Y, d.Size.Z)
	if err != nil {
		return nil, err
	}
	if d.Origin.X != 0 || d.Origin.Y != 0 || d.Origin.Z != 0 {
		if b, err = s.k.Translate(b, d.Origin.X, d.Origin.Y, d.Origin.Z); err != nil {
			return nil, err
		}
	}
	s.bodies[f.ID] = b
	return b, nil
}

// Invalidate drops cached bodies, e.g. after the graph was re-evaluated.
func (s *KernelSource) Invalidate(g *graph.FeatureGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.g = g
	s.bodies = make(map[graph.FeatureID]kernel.Solid)
}
