package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chazu/toponame/pkg/classify"
	"github.com/chazu/toponame/pkg/topo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fillet = FeatureMeta{ID: "f-7", Name: "fillet1", Class: "fillet"}

func driftOutcome() classify.Outcome {
	return classify.FromFailures([]classify.TnpFailure{
		classify.Classify(classify.Candidate{
			RefKind:         topo.ShapeEdge,
			IndexResolvable: true,
			ShapeResolvable: true,
			Expected:        1,
			Resolved:        0,
		}, false),
	})
}

func TestBuildDrift(t *testing.T) {
	env, err := Build(fillet, Refs{EdgeIndices: []int{3, 1, 2, 2, 0, -1}}, driftOutcome())
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, CodeRefDrift, env.Code)
	assert.Equal(t, classify.StatusWarningRecoverable, env.StatusClass)
	assert.Equal(t, SeverityWarning, env.Severity)
	assert.Equal(t, ActionAcceptDrift, env.NextAction)
	assert.Equal(t, []int{0, 1, 2, 3}, env.Refs.EdgeIndices)
	assert.NotNil(t, env.Refs.FaceIndices)
	require.NotNil(t, env.TnpFailure)
	assert.Equal(t, classify.CategoryDrift, env.TnpFailure.Category)
	assert.Contains(t, env.Hint, "fillet1")
}

func TestBuildOK(t *testing.T) {
	_, err := Build(fillet, Refs{}, classify.Outcome{})
	assert.True(t, errors.Is(err, ErrNoFailure))
}

func TestBuildEveryOutcome(t *testing.T) {
	missing := classify.FromFailures([]classify.TnpFailure{{Category: classify.CategoryMissing, ReferenceKind: topo.ShapeFace, Reason: "gone"}})
	mismatch := classify.FromFailures([]classify.TnpFailure{{Category: classify.CategoryMismatch, ReferenceKind: topo.ShapeEdge, Reason: "history says 4"}})

	tests := []struct {
		name     string
		outcome  classify.Outcome
		code     Code
		status   classify.StatusClass
		severity Severity
		action   NextAction
	}{
		{"missing", missing, CodeRefMissing, classify.StatusError, SeverityError, ActionReselectReference},
		{"mismatch", mismatch, CodeRefMismatch, classify.StatusError, SeverityError, ActionReselectReference},
		{"drift", driftOutcome(), CodeRefDrift, classify.StatusWarningRecoverable, SeverityWarning, ActionAcceptDrift},
		{"blocked", classify.Blocked("box1"), CodeUpstreamFailed, classify.StatusBlocked, SeverityError, ActionInspectDependencies},
		{"finalize", classify.FinalizeFailed(errors.New("boolean failed")), CodeFinalizeFailed, classify.StatusCritical, SeverityCritical, ActionRollback},
		{"unavailable", classify.Unavailable(errors.New("no history")), CodeDependencyUnavailable, classify.StatusError, SeverityError, ActionInspectDependencies},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Build(fillet, Refs{}, tt.outcome)
			require.NoError(t, err)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.status, env.StatusClass)
			assert.Equal(t, tt.severity, env.Severity)
			assert.Equal(t, tt.action, env.NextAction)
			assert.NotEmpty(t, env.Hint)
			assert.NotContains(t, env.Hint, "%!")
		})
	}
}

func TestBlockedHintNamesUpstream(t *testing.T) {
	env, err := Build(fillet, Refs{}, classify.Blocked("box1"))
	require.NoError(t, err)
	assert.Contains(t, env.Hint, `"box1"`)
	assert.Nil(t, env.TnpFailure)
}

func TestMarshalIsDeterministic(t *testing.T) {
	first, err := Build(fillet, Refs{EdgeIndices: []int{2, 0, 1}, FaceIndices: []int{5}}, driftOutcome())
	require.NoError(t, err)
	want, err := Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		// Same multiset, different raw order.
		env, err := Build(fillet, Refs{EdgeIndices: []int{1, 2, 0, 2}, FaceIndices: []int{5, 5}}, driftOutcome())
		require.NoError(t, err)
		got, err := Marshal(env)
		require.NoError(t, err)
		require.True(t, bytes.Equal(want, got), "cycle %d:\n%s\n%s", i, want, got)
	}
}

func TestWireFormat(t *testing.T) {
	env, err := Build(fillet, Refs{}, classify.FinalizeFailed(errors.New("fillet radius too large")))
	require.NoError(t, err)
	b, err := Marshal(env)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "finalize_failed", m["code"])
	assert.Equal(t, "CRITICAL", m["status_class"])
	assert.Equal(t, "critical", m["severity"])
	assert.Equal(t, "rollback", m["next_action"])
	assert.NotContains(t, m, "tnp_failure")
	refs := m["refs"].(map[string]any)
	assert.Equal(t, []any{}, refs["edge_indices"])
}

func TestRefsOf(t *testing.T) {
	refs := RefsOf([]topo.Slot{
		{Type: topo.ShapeEdge, Index: 4},
		{Type: topo.ShapeFace, Index: 1},
		{Type: topo.ShapeEdge, Index: -1},
		{Type: topo.ShapeEdge, Index: 2},
		{Type: topo.ShapeVertex, Index: 0},
	})
	assert.Equal(t, []int{2, 4}, refs.EdgeIndices)
	assert.Equal(t, []int{1}, refs.FaceIndices)
}

func TestClassificationTableIsComplete(t *testing.T) {
	for code, c := range table {
		assert.True(t, validSeverity(c.Severity), code)
		assert.NotEmpty(t, c.NextAction, code)
		assert.NotEqual(t, classify.StatusOK, c.Status, code)
	}
	c, ok := Classify("never_heard_of_it")
	assert.False(t, ok)
	assert.Equal(t, classify.StatusError, c.Status)
	assert.NotEmpty(t, c.NextAction)
}

func TestMigrate(t *testing.T) {
	tests := []struct {
		name        string
		in          StatusDetails
		wantStatus  string
		wantSev     Severity
		wantChanged bool
	}{
		{"legacy shifted edge", StatusDetails{Code: "edge_index_shifted", Message: "edge 3 moved"}, "WARNING_RECOVERABLE", SeverityWarning, true},
		{"legacy kernel exception", StatusDetails{Code: "kernel_exception"}, "CRITICAL", SeverityCritical, true},
		{"unknown code", StatusDetails{Code: "weird"}, "ERROR", SeverityError, true},
		{"severity only missing", StatusDetails{Code: CodeRefDrift, StatusClass: "WARNING_RECOVERABLE"}, "WARNING_RECOVERABLE", SeverityWarning, true},
		{"already current", StatusDetails{Code: CodeRefMissing, StatusClass: "ERROR", Severity: SeverityError}, "ERROR", SeverityError, false},
		{"garbage status", StatusDetails{Code: CodeRefMissing, StatusClass: "Error", Severity: SeverityError}, "ERROR", SeverityError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := Migrate(tt.in)
			assert.Equal(t, tt.in.Code, out.Code, "code must never change")
			assert.Equal(t, tt.in.Message, out.Message)
			assert.Equal(t, tt.wantStatus, out.StatusClass)
			assert.Equal(t, tt.wantSev, out.Severity)
			assert.Equal(t, tt.wantChanged, changed)

			again, changed := Migrate(out)
			assert.False(t, changed)
			assert.Equal(t, out, again)
		})
	}
}

func TestDetails(t *testing.T) {
	env, err := Build(fillet, Refs{}, driftOutcome())
	require.NoError(t, err)
	d := env.Details()
	assert.Equal(t, CodeRefDrift, d.Code)
	assert.Equal(t, classify.StatusWarningRecoverable, d.Status())
	_, changed := Migrate(d)
	assert.False(t, changed)
}
