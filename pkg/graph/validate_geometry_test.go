package graph

import (
	"strings"
	"testing"

	"github.com/chazu/toponame/pkg/store"
	"github.com/chazu/toponame/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func resultHasError(r ValidationResult, substr string) bool {
	for _, e := range r.Errors {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func resultHasWarning(r ValidationResult, substr string) bool {
	for _, w := range r.Warnings {
		if strings.Contains(w.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidateAllValidGraph(t *testing.T) {
	r := ValidateAll(buildBracket())
	if !r.OK() {
		t.Errorf("expected no errors, got %v", r.Errors)
	}
}

func TestValidateAllParams(t *testing.T) {
	tests := []struct {
		name string
		mut  func(g *FeatureGraph)
		want string
	}{
		{"zero box", func(g *FeatureGraph) { g.Get("box-0").Data = BoxData{Size: v3.Vec{X: 0, Y: 1, Z: 1}} }, "size X is 0.0000"},
		{"negative radius", func(g *FeatureGraph) { g.Get("fillet-2").Data = FilletData{Radius: -1} }, "radius is -1.0000"},
		{"no profile", func(g *FeatureGraph) { g.Get("sweep-3").Data = SweepData{} }, "profile radius"},
		{"nil data", func(g *FeatureGraph) { g.Get("box-1").Data = nil }, "no data"},
		{"wrong data", func(g *FeatureGraph) { g.Get("fillet-2").Data = HoleData{Diameter: 1} }, "hole data attached to a fillet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildBracket()
			tt.mut(g)
			r := ValidateAll(g)
			if !resultHasError(r, tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, r.Errors)
			}
		})
	}
}

func TestValidateAllHoleDepth(t *testing.T) {
	g := buildBracket()
	refs, _ := store.NewFeatureReferenceSet("hole-4", nil, []any{0})
	g.Add(&Feature{
		ID: "hole-4", Class: ClassHole, Dependencies: []FeatureID{"box-0"},
		Data: HoleData{Diameter: 3, Depth: -2}, Refs: refs,
	})
	r := ValidateAll(g)
	if !resultHasError(r, "hole depth") {
		t.Errorf("expected hole depth error, got %v", r.Errors)
	}
}

func TestValidateAllLoftSections(t *testing.T) {
	g := buildBracket()
	refs, _ := store.NewPathSet("loft-4", topo.ShapeFace, []any{2})
	g.Add(&Feature{
		ID: "loft-4", Class: ClassLoft, Dependencies: []FeatureID{"box-0", "box-1"},
		Data: LoftData{}, Refs: refs,
	})
	r := ValidateAll(g)
	if !resultHasError(r, "loft needs at least 2 sections, has 1") {
		t.Errorf("expected loft section error, got %v", r.Errors)
	}
}

func TestValidateAllPathSlotType(t *testing.T) {
	g := buildBracket()
	g.Get("sweep-3").Refs, _ = store.NewPathSet("sweep-3", topo.ShapeFace, []any{1})
	r := ValidateAll(g)
	if !resultHasError(r, "slot 0 is a face, sweep needs edges") {
		t.Errorf("expected slot type error, got %v", r.Errors)
	}
}

func TestValidateAllEmptyPathSlotWarns(t *testing.T) {
	g := buildBracket()
	g.Get("sweep-3").Refs, _ = store.NewPathSet("sweep-3", topo.ShapeEdge, []any{4, "junk"})
	r := ValidateAll(g)
	if !r.OK() {
		t.Errorf("unexpected errors: %v", r.Errors)
	}
	if !resultHasWarning(r, "sweep slot 1 is empty") {
		t.Errorf("expected empty slot warning, got %v", r.Warnings)
	}
}

func TestValidateAllIgnoredRefs(t *testing.T) {
	g := buildBracket()
	g.Get("fillet-2").Refs, _ = store.NewFeatureReferenceSet("fillet-2", []any{0}, []any{1})
	r := ValidateAll(g)
	if !resultHasWarning(r, "fillet ignores face references") {
		t.Errorf("expected ignored refs warning, got %v", r.Warnings)
	}
}
