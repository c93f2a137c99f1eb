package engine

import (
	"strings"
	"testing"

	"github.com/chazu/toponame/pkg/graph"
	"github.com/chazu/toponame/pkg/store"
	"github.com/chazu/toponame/pkg/topo"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"simple keyword", `(fillet :radius 2)`, `(fillet "__kw_radius" 2)`},
		{"multiple keywords", `(hole :diameter 3 :depth 5)`, `(hole "__kw_diameter" 3 "__kw_depth" 5)`},
		{"keyword in string preserved", `"thing with :keyword inside"`, `"thing with :keyword inside"`},
		{"assignment operator preserved", `(def x := 10)`, `(def x := 10)`},
		{"kebab-case identifier", `(def top-rail :on base)`, `(def top_rail "__kw_on" base)`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative literal preserved", `(list 3 -1)`, `(list 3 -1)`},
		{"comment converted to // style", `;; comment with :keyword`, `// comment with :keyword`},
		{"hyphen in keyword preserved", `:profile-radius`, `"__kw_profile-radius"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// evalOK evaluates source and fails the test on any error.
func evalOK(t *testing.T, source string) *EvalResult {
	t.Helper()
	res, err := NewEngine().EvaluateContext(t.Context(), source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("eval errors: %v", res.Errors)
	}
	return res
}

// evalErr evaluates source and returns the joined eval error messages.
func evalErr(t *testing.T, source string) string {
	t.Helper()
	res, err := NewEngine().EvaluateContext(t.Context(), source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected eval errors")
	}
	var msgs []string
	for _, e := range res.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

func TestBox(t *testing.T) {
	g := evalOK(t, `(box "base" :size (vec3 40 20 10) :at (vec3 1 2 3))`).Graph

	f := g.Lookup("base")
	if f == nil {
		t.Fatal("box not registered by name")
	}
	if f.ID != "box-0" || f.Class != graph.ClassBox {
		t.Errorf("got %s %s, want box-0 box", f.ID, f.Class)
	}
	d := f.Data.(graph.BoxData)
	if d.Size.X != 40 || d.Size.Y != 20 || d.Size.Z != 10 {
		t.Errorf("size = %v", d.Size)
	}
	if d.Origin.X != 1 || d.Origin.Z != 3 {
		t.Errorf("origin = %v", d.Origin)
	}
	if f.Refs != nil {
		t.Error("body should carry no reference set")
	}
}

func TestBoxRequiresSize(t *testing.T) {
	if msg := evalErr(t, `(box "base")`); !strings.Contains(msg, ":size is required") {
		t.Errorf("unexpected error: %s", msg)
	}
}

func TestVec3(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"too few", `(box :size (vec3 1 2))`, "expected 3 arguments"},
		{"not a number", `(box :size (vec3 1 "a" 3))`, "component 1"},
		{"not a vec3", `(box :size 5)`, "expected vec3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := evalErr(t, tt.src); !strings.Contains(msg, tt.want) {
				t.Errorf("error %q does not mention %q", msg, tt.want)
			}
		})
	}
}

func TestFilletCanonicalizesEdges(t *testing.T) {
	res := evalOK(t, `
(def base (box "base" :size (vec3 10 10 10)))
(fillet "round" :on base :radius 1.5 :edges (list 3 1 2 2 0 -1))
`)
	f := res.Graph.Lookup("round")
	if f == nil {
		t.Fatal("fillet not registered")
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3}, f.Refs.EdgeIndices); diff != "" {
		t.Errorf("edge indices (-want +got):\n%s", diff)
	}
	if len(f.Refs.FaceIndices) != 0 {
		t.Errorf("fillet selected faces: %v", f.Refs.FaceIndices)
	}
	if diff := cmp.Diff([]graph.FeatureID{"box-0"}, f.Dependencies); diff != "" {
		t.Errorf("dependencies (-want +got):\n%s", diff)
	}
	if r := f.Data.(graph.FilletData).Radius; r != 1.5 {
		t.Errorf("radius = %v", r)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected one dropped-entry warning, got %v", res.Warnings)
	}
}

func TestReferenceDefaultsToLastBody(t *testing.T) {
	g := evalOK(t, `
(box "base" :size (vec3 10 10 10))
(box "boss" :size (vec3 2 2 2) :at (vec3 0 0 10))
(chamfer :distance 0.5 :edges (list 4))
`).Graph
	f := g.Get("chamfer-2")
	if f == nil {
		t.Fatal("chamfer-2 missing")
	}
	if diff := cmp.Diff([]graph.FeatureID{"box-1"}, f.Dependencies); diff != "" {
		t.Errorf("dependencies (-want +got):\n%s", diff)
	}
}

func TestOnAcceptsNamesAndLists(t *testing.T) {
	g := evalOK(t, `
(box "base" :size (vec3 10 10 10))
(box "boss" :size (vec3 2 2 2))
(shell "hollow" :on (list "base" (feature "boss")) :thickness 1 :faces (list 5))
`).Graph
	f := g.Lookup("hollow")
	if diff := cmp.Diff([]graph.FeatureID{"box-0", "box-1"}, f.Dependencies); diff != "" {
		t.Errorf("dependencies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{5}, f.Refs.FaceIndices); diff != "" {
		t.Errorf("face indices (-want +got):\n%s", diff)
	}
}

func TestUnknownDependencyIsKeptForValidation(t *testing.T) {
	g := evalOK(t, `
(box "base" :size (vec3 10 10 10))
(hole :on "ghost" :diameter 2 :faces (list 1))
`).Graph
	f := g.Get("hole-1")
	if diff := cmp.Diff([]graph.FeatureID{"ghost"}, f.Dependencies); diff != "" {
		t.Errorf("dependencies (-want +got):\n%s", diff)
	}
	if graph.ValidateAll(g).OK() {
		t.Error("validation should reject the dangling dependency")
	}
}

func TestHoleDepthOptional(t *testing.T) {
	g := evalOK(t, `
(box :size (vec3 10 10 10))
(hole :diameter 3 :faces 2)
`).Graph
	d := g.Get("hole-1").Data.(graph.HoleData)
	if d.Diameter != 3 || d.Depth != 0 {
		t.Errorf("hole data = %+v", d)
	}
	if diff := cmp.Diff([]int{2}, g.Get("hole-1").Refs.FaceIndices); diff != "" {
		t.Errorf("single index not accepted (-want +got):\n%s", diff)
	}
}

func TestSweepKeepsPathOrder(t *testing.T) {
	g := evalOK(t, `
(box "base" :size (vec3 10 10 10))
(sweep "rail" :profile 0.5 :path (list 5 4 "x" 5))
`).Graph
	f := g.Lookup("rail")
	slots := f.Refs.Slots()
	want := []int{5, 4, -1, 5}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, s := range slots {
		if s.Index != want[i] || s.Type != topo.ShapeEdge {
			t.Errorf("slot %d = %+v, want edge %d", i, s, want[i])
		}
	}
}

func TestLoftRuled(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"default", `(loft :sections (list 0 1))`, false},
		{"explicit", `(loft :sections (list 0 1) :ruled true)`, true},
		{"numeric", `(loft :sections (list 0 1) :ruled 0)`, false},
		{"flag", `(loft :sections (list 0 1) :ruled)`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := evalOK(t, `(box :size (vec3 1 1 1))`+"\n"+tt.src).Graph
			if got := g.Get("loft-1").Data.(graph.LoftData).Ruled; got != tt.want {
				t.Errorf("ruled = %v, want %v", got, tt.want)
			}
			if !g.Get("loft-1").Refs.IsPath() {
				t.Error("loft sections should be a path")
			}
		})
	}
}

func TestMissingRequiredParam(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"fillet radius", `(fillet :edges (list 0))`, "fillet: :radius is required"},
		{"chamfer distance", `(chamfer :edges (list 0))`, "chamfer: :distance is required"},
		{"shell thickness", `(shell :faces (list 0))`, "shell: :thickness is required"},
		{"sweep profile", `(sweep :path (list 0))`, "sweep: :profile is required"},
		{"radius type", `(fillet :radius "big")`, "expected number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := evalErr(t, tt.src); !strings.Contains(msg, tt.want) {
				t.Errorf("error %q does not mention %q", msg, tt.want)
			}
		})
	}
}

func TestFeatureLookupError(t *testing.T) {
	if msg := evalErr(t, `(feature "nope")`); !strings.Contains(msg, `no feature named "nope"`) {
		t.Errorf("unexpected error: %s", msg)
	}
}

func TestEvaluationIsDeterministic(t *testing.T) {
	src := `
(def base (box "base" :size (vec3 40 20 10)))
(def boss (box "boss" :size (vec3 10 10 10) :after base))
(fillet "round" :on base :radius 1 :edges (list 3 1 2))
(sweep "rail" :on boss :profile 0.5 :path (list 4 5))
`
	first := evalOK(t, src).Graph
	opts := cmp.Options{cmpopts.IgnoreUnexported(store.FeatureReferenceSet{})}
	for i := 0; i < 5; i++ {
		next := evalOK(t, src).Graph
		if diff := cmp.Diff(first, next, opts); diff != "" {
			t.Fatalf("evaluation %d differs (-first +next):\n%s", i, diff)
		}
	}
}

func TestFullBracketValidates(t *testing.T) {
	g := evalOK(t, `
; bracket with a boss, rounded edges and a swept rail
(def base (box "base" :size (vec3 40 20 10)))
(def boss (box "boss" :size (vec3 10 10 10) :at (vec3 0 0 10) :after base))
(fillet "round" :on base :radius 1 :edges (list 0 1 2 3))
(chamfer "bevel" :on boss :distance 0.5 :edges (list 8))
(hole "bore" :on base :diameter 3 :depth 5 :faces (list 4))
(sweep "rail" :on boss :profile 0.5 :path (list 4 5))
(loft "blend" :on (list base boss) :sections (list 0 1))
`).Graph
	if g.Len() != 7 {
		t.Fatalf("expected 7 features, got %d", g.Len())
	}
	r := graph.ValidateAll(g)
	if !r.OK() {
		t.Errorf("unexpected validation errors: %v", r.Errors)
	}
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatal(err)
	}
	if order[0].ID != "box-0" || order[1].ID != "box-1" {
		t.Errorf("bodies should come first, got %s %s", order[0].ID, order[1].ID)
	}
}
