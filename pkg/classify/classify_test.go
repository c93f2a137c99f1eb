package classify

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/chazu/toponame/pkg/topo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		index      bool
		shape      bool
		confidence topo.Confidence
		strict     bool
		want       Category
	}{
		{"strong disagreement legacy", true, true, topo.ConfidenceStrong, false, CategoryMismatch},
		{"strong disagreement strict", true, true, topo.ConfidenceStrong, true, CategoryMismatch},
		{"weak disagreement legacy", true, true, topo.ConfidenceWeak, false, CategoryDrift},
		{"weak disagreement strict", true, true, topo.ConfidenceWeak, true, CategoryMismatch},
		{"weak rescue legacy", false, true, topo.ConfidenceWeak, false, CategoryDrift},
		{"weak rescue strict", false, true, topo.ConfidenceWeak, true, CategoryMismatch},
		{"strong without index", false, true, topo.ConfidenceStrong, true, CategoryNone},
		{"index only legacy", true, false, topo.ConfidenceWeak, false, CategoryDrift},
		{"index only strict", true, false, topo.ConfidenceWeak, true, CategoryMissing},
		{"nothing legacy", false, false, topo.ConfidenceWeak, false, CategoryMissing},
		{"nothing strict", false, false, topo.ConfidenceWeak, true, CategoryMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{
				RefKind:         topo.ShapeEdge,
				IndexResolvable: tt.index,
				ShapeResolvable: tt.shape,
				Confidence:      tt.confidence,
				Expected:        2,
				Resolved:        5,
			}
			f := Classify(c, tt.strict)
			assert.Equal(t, tt.want, f.Category)
			assert.Equal(t, tt.strict, f.Strict)
			assert.Equal(t, topo.ShapeEdge, f.ReferenceKind)
			if f.Category != CategoryNone {
				assert.NotEmpty(t, f.Reason)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := Candidate{RefKind: topo.ShapeFace, IndexResolvable: true, ShapeResolvable: true, Expected: 1, Resolved: 4}
	// Interleave policies: a strict call must never influence a legacy call.
	for i := 0; i < 10; i++ {
		require.Equal(t, CategoryMismatch, Classify(c, true).Category)
		require.Equal(t, CategoryDrift, Classify(c, false).Category)
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusWarningRecoverable, StatusOf(CategoryDrift))
	assert.Equal(t, StatusError, StatusOf(CategoryMismatch))
	assert.Equal(t, StatusError, StatusOf(CategoryMissing))
	assert.Equal(t, StatusError, StatusOf(CategoryDependencyUnavailable))
	assert.Equal(t, StatusCritical, StatusOf(CategoryFinalizeFailed))
	assert.Equal(t, StatusOK, StatusOf(CategoryNone))
}

func TestWorst(t *testing.T) {
	failures := []TnpFailure{
		{Category: CategoryDrift, Slot: 0},
		{Category: CategoryMismatch, Slot: 1},
		{Category: CategoryMismatch, Slot: 2},
		{Category: CategoryNone, Slot: 3},
	}
	w, ok := Worst(failures)
	require.True(t, ok)
	assert.Equal(t, CategoryMismatch, w.Category)
	assert.Equal(t, 1, w.Slot, "ties keep the first slot")

	_, ok = Worst([]TnpFailure{{Category: CategoryNone}})
	assert.False(t, ok)
}

func TestOutcomes(t *testing.T) {
	assert.False(t, FromFailures(nil).Failed())

	o := FromFailures([]TnpFailure{{Category: CategoryDrift}})
	assert.Equal(t, StatusWarningRecoverable, o.Status)
	require.NotNil(t, o.Failure)

	b := Blocked("fillet1")
	assert.Equal(t, StatusBlocked, b.Status)
	assert.Equal(t, "fillet1", b.Upstream)

	c := FinalizeFailed(errors.New("boolean failed"))
	assert.Equal(t, StatusCritical, c.Status)
	assert.Equal(t, "boolean failed", c.Detail)

	u := Unavailable(errors.New("no history"))
	assert.Equal(t, StatusError, u.Status)
	assert.Equal(t, CategoryDependencyUnavailable, u.Category)
}

func TestStatusClassText(t *testing.T) {
	for s := StatusOK; s <= StatusCritical; s++ {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		var back StatusClass
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, s, back)
	}
	_, err := ParseStatusClass("FATAL")
	assert.Error(t, err)
	assert.True(t, StatusBlocked.Halts())
	assert.False(t, StatusWarningRecoverable.Halts())
}

func TestCategoryText(t *testing.T) {
	var c Category
	require.NoError(t, c.UnmarshalText([]byte("Drift")))
	assert.Equal(t, CategoryDrift, c)
	assert.Error(t, c.UnmarshalText([]byte("Wobble")))
}
