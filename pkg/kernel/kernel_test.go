package kernel

import (
	"errors"
	"testing"

	"github.com/chazu/toponame/pkg/topo"
)

// stubSolid is a minimal Solid without history.
type stubSolid struct {
	edges []Shape
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) { return }

func (s *stubSolid) Shapes(t topo.ShapeType) []Shape {
	if t == topo.ShapeEdge {
		return s.edges
	}
	return nil
}

// historySolid adds the optional lineage capability.
type historySolid struct {
	stubSolid
	enabled bool
}

type identityHistory struct{}

func (identityHistory) Descendants(h topo.Handle) []topo.Handle { return []topo.Handle{h} }

func (s *historySolid) History() (History, bool) {
	if !s.enabled {
		return nil, false
	}
	return identityHistory{}, true
}

// stubKernel proves the Kernel interface is satisfiable.
type stubKernel struct{}

func (stubKernel) Box(string, float64, float64, float64) (Solid, error) { return &stubSolid{}, nil }
func (stubKernel) Translate(s Solid, _, _, _ float64) (Solid, error)   { return s, nil }
func (stubKernel) Union(a, _ Solid) (Solid, error)                     { return a, nil }

var (
	_ Solid     = (*stubSolid)(nil)
	_ Historian = (*historySolid)(nil)
	_ Kernel    = stubKernel{}
)

func edge(feature string, local int) Shape {
	id := topo.ShapeID{FeatureID: feature, LocalID: local, ShapeType: topo.ShapeEdge}
	return Shape{Handle: topo.Handle(id.String()), Origin: id}
}

func TestHistoryOf(t *testing.T) {
	tests := []struct {
		name  string
		solid Solid
		want  bool
	}{
		{"nil solid", nil, false},
		{"no capability", &stubSolid{}, false},
		{"capability disabled", &historySolid{enabled: false}, false},
		{"capability enabled", &historySolid{enabled: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := HistoryOf(tt.solid)
			if ok != tt.want {
				t.Fatalf("HistoryOf ok = %v, want %v", ok, tt.want)
			}
			if ok && h == nil {
				t.Fatal("ok history must be non-nil")
			}
		})
	}
}

func TestIndexOf(t *testing.T) {
	s := &stubSolid{edges: []Shape{edge("a", 0), edge("a", 1), edge("b", 0)}}
	if got := IndexOf(s, topo.ShapeEdge, "b/edge/0"); got != 2 {
		t.Errorf("IndexOf(b/edge/0) = %d, want 2", got)
	}
	if got := IndexOf(s, topo.ShapeEdge, "c/edge/0"); got != -1 {
		t.Errorf("IndexOf(missing) = %d, want -1", got)
	}
	if got := IndexOf(s, topo.ShapeFace, "a/edge/0"); got != -1 {
		t.Errorf("IndexOf(wrong type) = %d, want -1", got)
	}
}

func TestShapeType(t *testing.T) {
	if got := edge("a", 3).Type(); got != topo.ShapeEdge {
		t.Errorf("Type() = %s, want edge", got)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("no-such-kernel")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open error = %v, want ErrUnavailable", err)
	}
}

func TestRegisterAndOpen(t *testing.T) {
	Register("stub-test", func() (Kernel, error) { return stubKernel{}, nil })
	k, err := Open("stub-test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := k.(stubKernel); !ok {
		t.Errorf("Open returned %T", k)
	}
	found := false
	for _, name := range Backends() {
		if name == "stub-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Backends() = %v, missing stub-test", Backends())
	}
}
