package graph

import (
	"testing"

	"github.com/chazu/toponame/pkg/store"
	"github.com/chazu/toponame/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// buildBracket creates a small valid graph: a base box, a boss box on top
// of it, a fillet on base edges and a sweep along a boss edge path.
//
//	base ──┬── fillet1
//	       └── boss ── sweep1
func buildBracket() *FeatureGraph {
	g := New()

	g.Add(&Feature{
		ID: "box-0", Name: "base", Class: ClassBox,
		Data: BoxData{Size: v3.Vec{X: 40, Y: 20, Z: 10}},
	})
	g.Add(&Feature{
		ID: "box-1", Name: "boss", Class: ClassBox,
		Dependencies: []FeatureID{"box-0"},
		Data:         BoxData{Size: v3.Vec{X: 10, Y: 10, Z: 10}, Origin: v3.Vec{Z: 10}},
	})
	fillet, _ := store.NewFeatureReferenceSet("fillet-2", []any{3, 1, 2, 2, 0, -1}, nil)
	g.Add(&Feature{
		ID: "fillet-2", Name: "fillet1", Class: ClassFillet,
		Dependencies: []FeatureID{"box-0"},
		Data:         FilletData{Radius: 1},
		Refs:         fillet,
	})
	sweep, _ := store.NewPathSet("sweep-3", topo.ShapeEdge, []any{4, 5})
	g.Add(&Feature{
		ID: "sweep-3", Name: "sweep1", Class: ClassSweep,
		Dependencies: []FeatureID{"box-1"},
		Data:         SweepData{ProfileRadius: 0.5},
		Refs:         sweep,
	})
	return g
}

func ids(fs []*Feature) []FeatureID {
	out := make([]FeatureID, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}

func equalIDs(a, b []FeatureID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewFeatureGraph(t *testing.T) {
	g := New()
	if g.Features == nil {
		t.Fatal("Features map should be initialized")
	}
	if g.NameIndex == nil {
		t.Fatal("NameIndex map should be initialized")
	}
	if g.Len() != 0 {
		t.Errorf("empty graph should have 0 features, got %d", g.Len())
	}
}

func TestAddAndLookup(t *testing.T) {
	g := buildBracket()

	if g.Len() != 4 {
		t.Errorf("feature count = %d, want 4", g.Len())
	}
	if f := g.Lookup("fillet1"); f == nil || f.ID != "fillet-2" {
		t.Errorf("Lookup(fillet1) = %v", f)
	}
	if g.Lookup("nonexistent") != nil {
		t.Error("Lookup should return nil for missing name")
	}
	if f := g.Get("box-1"); f == nil || f.Seq != 1 {
		t.Errorf("Get(box-1) = %+v, want Seq 1", f)
	}
	if f := g.Resolve("boss"); f == nil || f.ID != "box-1" {
		t.Errorf("Resolve by name failed: %v", f)
	}
	if f := g.Resolve("sweep-3"); f == nil || f.Name != "sweep1" {
		t.Errorf("Resolve by id failed: %v", f)
	}
	if got := ids(g.Bodies()); !equalIDs(got, []FeatureID{"box-0", "box-1"}) {
		t.Errorf("Bodies = %v", got)
	}
}

func TestMustLookupPanics(t *testing.T) {
	g := New()
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustLookup should panic on missing name")
		}
	}()
	g.MustLookup("nope")
}

func TestFilletRefsCanonicalAtConstruction(t *testing.T) {
	g := buildBracket()
	got := g.MustLookup("fillet1").Refs.EdgeIndices
	want := []int{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("edge indices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("edge indices = %v, want %v", got, want)
		}
	}
}

func TestTopoOrder(t *testing.T) {
	g := buildBracket()
	for i := 0; i < 10; i++ {
		order, err := g.TopoOrder()
		if err != nil {
			t.Fatal(err)
		}
		want := []FeatureID{"box-0", "box-1", "fillet-2", "sweep-3"}
		if got := ids(order); !equalIDs(got, want) {
			t.Fatalf("TopoOrder = %v, want %v", got, want)
		}
	}
}

func TestTopoOrderDependencyBeforeDeclaration(t *testing.T) {
	g := New()
	// Declared first, but depends on a later feature.
	g.Add(&Feature{ID: "b", Class: ClassBox, Dependencies: []FeatureID{"a"}, Data: BoxData{Size: v3.Vec{X: 1, Y: 1, Z: 1}}})
	g.Add(&Feature{ID: "a", Class: ClassBox, Data: BoxData{Size: v3.Vec{X: 1, Y: 1, Z: 1}}})

	order, err := g.TopoOrder()
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(order); !equalIDs(got, []FeatureID{"a", "b"}) {
		t.Errorf("TopoOrder = %v", got)
	}
}

func TestTopoOrderCycle(t *testing.T) {
	g := New()
	g.Add(&Feature{ID: "a", Class: ClassBox, Dependencies: []FeatureID{"b"}})
	g.Add(&Feature{ID: "b", Class: ClassBox, Dependencies: []FeatureID{"a"}})
	if _, err := g.TopoOrder(); err == nil {
		t.Error("expected cycle error")
	}
}

func TestDependents(t *testing.T) {
	g := buildBracket()

	if got := ids(g.Dependents("box-0")); !equalIDs(got, []FeatureID{"box-1", "fillet-2", "sweep-3"}) {
		t.Errorf("Dependents(box-0) = %v", got)
	}
	if got := ids(g.Dependents("box-1")); !equalIDs(got, []FeatureID{"sweep-3"}) {
		t.Errorf("Dependents(box-1) = %v", got)
	}
	if got := g.Dependents("sweep-3"); len(got) != 0 {
		t.Errorf("Dependents(sweep-3) = %v, want none", ids(got))
	}
}

func TestAncestors(t *testing.T) {
	g := buildBracket()
	if got := ids(g.Ancestors("sweep-3")); !equalIDs(got, []FeatureID{"box-0", "box-1"}) {
		t.Errorf("Ancestors(sweep-3) = %v", got)
	}
}

func TestClassText(t *testing.T) {
	for c := ClassBox; c <= ClassLoft; c++ {
		b, err := c.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Class
		if err := back.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if back != c {
			t.Errorf("round trip %s -> %s", c, back)
		}
	}
	if _, err := ParseClass("extrude"); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestClassRefKind(t *testing.T) {
	tests := []struct {
		class Class
		want  topo.ShapeType
		ok    bool
		path  bool
	}{
		{ClassBox, 0, false, false},
		{ClassFillet, topo.ShapeEdge, true, false},
		{ClassChamfer, topo.ShapeEdge, true, false},
		{ClassHole, topo.ShapeFace, true, false},
		{ClassShell, topo.ShapeFace, true, false},
		{ClassSweep, topo.ShapeEdge, true, true},
		{ClassLoft, topo.ShapeFace, true, true},
	}
	for _, tt := range tests {
		got, ok := tt.class.RefKind()
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("%s.RefKind() = %s, %v", tt.class, got, ok)
		}
		if tt.class.IsPath() != tt.path {
			t.Errorf("%s.IsPath() = %v", tt.class, tt.class.IsPath())
		}
	}
}
