// Package kernel defines the read-only view of a geometry kernel that the
// reference resolver consumes. Implementations (sdfx, fixture) provide
// shape enumeration, measurement and, optionally, lineage history behind
// this interface so that the resolver never depends on a specific backend.
package kernel

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/toponame/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrUnavailable is returned when a kernel backend or capability is not
// present in the running build.
var ErrUnavailable = errors.New("kernel capability unavailable")

// Shape is one enumerated topological entity with its measurements.
type Shape struct {
	Handle    topo.Handle
	Origin    topo.ShapeID // feature and local id that first produced the shape
	Centroid  v3.Vec
	Direction v3.Vec // outward normal for faces, tangent for edges
	Size      float64
}

// Type returns the shape's topological kind.
func (s Shape) Type() topo.ShapeType {
	return s.Origin.ShapeType
}

// Solid is a read-only handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)

	// Shapes enumerates the solid's shapes of one type. The position of a
	// shape in the returned slice is its raw index. Enumeration is stable
	// for a given solid.
	Shapes(t topo.ShapeType) []Shape
}

// History maps a shape handle to the handles derived from it through the
// operations applied since it was created. The result includes h itself
// when h survived unchanged.
type History interface {
	Descendants(h topo.Handle) []topo.Handle
}

// Historian is implemented by solids whose kernel records lineage.
type Historian interface {
	History() (History, bool)
}

// HistoryOf returns the lineage capability of s, if the kernel exposes one.
func HistoryOf(s Solid) (History, bool) {
	if s == nil {
		return nil, false
	}
	h, ok := s.(Historian)
	if !ok {
		return nil, false
	}
	return h.History()
}

// Kernel builds solids. Only the operations the rebuild harness needs are
// exposed; feature geometry (fillets, shells) is computed elsewhere.
type Kernel interface {
	Box(featureID string, x, y, z float64) (Solid, error)
	Translate(s Solid, x, y, z float64) (Solid, error)
	Union(a, b Solid) (Solid, error)
}

// Factory constructs a kernel backend.
type Factory func() (Kernel, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to Open. It is intended to be called
// from backend package init functions.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Open returns the named backend. Unknown names wrap ErrUnavailable.
func Open(name string) (Kernel, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kernel %q: %w", name, ErrUnavailable)
	}
	return f()
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexOf returns the position of handle h in s's enumeration of type t,
// or -1.
func IndexOf(s Solid, t topo.ShapeType, h topo.Handle) int {
	for i, sh := range s.Shapes(t) {
		if sh.Handle == h {
			return i
		}
	}
	return -1
}
