package sdfx

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/topo"
)

func TestBoxTopologyCounts(t *testing.T) {
	k := New()
	box, err := k.Box("base", 100, 50, 25)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	counts := map[topo.ShapeType]int{topo.ShapeFace: 6, topo.ShapeEdge: 12, topo.ShapeVertex: 8}
	for st, want := range counts {
		if got := len(box.Shapes(st)); got != want {
			t.Errorf("%s count = %d, want %d", st, got, want)
		}
	}
}

func TestBoxBoundingBox(t *testing.T) {
	k := New()
	box, err := k.Box("base", 100, 50, 25)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	min, max := box.BoundingBox()
	want := [3]float64{100, 50, 25}
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]) > 1e-6 {
			t.Errorf("min[%d] = %f, want 0", i, min[i])
		}
		if math.Abs(max[i]-want[i]) > 1e-6 {
			t.Errorf("max[%d] = %f, want %f", i, max[i], want[i])
		}
	}
}

func TestBoxRejectsBadInput(t *testing.T) {
	k := New()
	if _, err := k.Box("", 1, 1, 1); err == nil {
		t.Error("expected error for empty feature id")
	}
	if _, err := k.Box("base", 0, 1, 1); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestEdgeMeasurements(t *testing.T) {
	k := New()
	box, err := k.Box("base", 40, 20, 10)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	lengths := map[float64]int{}
	for _, e := range box.Shapes(topo.ShapeEdge) {
		lengths[e.Size]++
		if e.Direction.Length() != 1 {
			t.Errorf("edge %s direction not unit: %v", e.Handle, e.Direction)
		}
	}
	for _, l := range []float64{40, 20, 10} {
		if lengths[l] != 4 {
			t.Errorf("expected 4 edges of length %v, got %d", l, lengths[l])
		}
	}
}

func TestEnumerationIsStable(t *testing.T) {
	k := New()
	a, _ := k.Box("base", 40, 20, 10)
	b, _ := k.Box("base", 40, 20, 10)
	ea, eb := a.Shapes(topo.ShapeEdge), b.Shapes(topo.ShapeEdge)
	for i := range ea {
		if ea[i].Handle != eb[i].Handle {
			t.Fatalf("index %d: %s vs %s", i, ea[i].Handle, eb[i].Handle)
		}
	}
}

func TestUnionRenumbersButKeepsHandles(t *testing.T) {
	k := New()
	base, err := k.Box("base", 10, 10, 10)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	boss, err := k.Box("boss", 10, 10, 10)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	boss, err = k.Translate(boss, -20, 0, 0)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	merged, err := k.Union(base, boss)
	if err != nil {
		t.Fatalf("Union: %v", err)
	}

	h := topo.Handle("base/edge/0")
	before := kernel.IndexOf(base, topo.ShapeEdge, h)
	after := kernel.IndexOf(merged, topo.ShapeEdge, h)
	if before < 0 || after < 0 {
		t.Fatalf("handle %s missing: before=%d after=%d", h, before, after)
	}
	if before == after {
		t.Errorf("expected union to renumber %s, index stayed %d", h, before)
	}
	if len(merged.Shapes(topo.ShapeEdge)) != 24 {
		t.Errorf("merged edge count = %d, want 24", len(merged.Shapes(topo.ShapeEdge)))
	}

	hist, ok := kernel.HistoryOf(merged)
	if !ok {
		t.Fatal("sdfx solids should expose history")
	}
	desc := hist.Descendants(h)
	if len(desc) != 1 || desc[0] != h {
		t.Errorf("Descendants(%s) = %v", h, desc)
	}
	if got := hist.Descendants("gone/edge/1"); len(got) != 0 {
		t.Errorf("unknown handle should have no descendants, got %v", got)
	}
}

func TestTranslateMovesCentroids(t *testing.T) {
	k := New()
	box, _ := k.Box("base", 2, 2, 2)
	moved, err := k.Translate(box, 5, 0, 0)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	for _, v := range moved.Shapes(topo.ShapeVertex) {
		if v.Centroid.X < 5 {
			t.Errorf("vertex %s not translated: %v", v.Handle, v.Centroid)
		}
	}
}

func TestForeignSolidRejected(t *testing.T) {
	k := New()
	box, _ := k.Box("base", 1, 1, 1)
	_, err := k.Union(box, nil)
	if err == nil {
		t.Fatal("expected error for nil solid")
	}
}

func TestRegisteredBackend(t *testing.T) {
	kn, err := kernel.Open(BackendName)
	if err != nil {
		t.Fatalf("Open(%q): %v", BackendName, err)
	}
	if _, ok := kn.(*SdfxKernel); !ok {
		t.Errorf("Open returned %T", kn)
	}
	if _, err := kernel.Open("manifold"); !errors.Is(err, kernel.ErrUnavailable) {
		t.Errorf("Open(manifold) err = %v, want ErrUnavailable", err)
	}
}
