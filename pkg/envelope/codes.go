package envelope

import "github.com/chazu/toponame/pkg/classify"

// Code identifies an envelope kind on the wire. Codes are stable: a code
// written by any past version must keep its meaning.
type Code string

const (
	CodeRefMissing            Code = "tnp_ref_missing"
	CodeRefMismatch           Code = "tnp_ref_mismatch"
	CodeRefDrift              Code = "tnp_ref_drift"
	CodeUpstreamFailed        Code = "upstream_failed"
	CodeFinalizeFailed        Code = "finalize_failed"
	CodeDependencyUnavailable Code = "dependency_unavailable"
)

// Severity is the UI weight of an envelope.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// NextAction is the concrete step offered to the user or automation.
type NextAction string

const (
	ActionReselectReference   NextAction = "reselect_reference"
	ActionAcceptDrift         NextAction = "accept_drift"
	ActionInspectDependencies NextAction = "inspect_dependencies"
	ActionRebuild             NextAction = "rebuild"
	ActionRollback            NextAction = "rollback"
)

// Classification is the fixed triple attached to a code.
type Classification struct {
	Status     classify.StatusClass
	Severity   Severity
	NextAction NextAction
}

// fallback covers codes this version has never seen. It must stay a
// halting class so unknown failures never pass as warnings.
var fallback = Classification{classify.StatusError, SeverityError, ActionInspectDependencies}

var table = map[Code]Classification{
	CodeRefMissing:            {classify.StatusError, SeverityError, ActionReselectReference},
	CodeRefMismatch:           {classify.StatusError, SeverityError, ActionReselectReference},
	CodeRefDrift:              {classify.StatusWarningRecoverable, SeverityWarning, ActionAcceptDrift},
	CodeUpstreamFailed:        {classify.StatusBlocked, SeverityError, ActionInspectDependencies},
	CodeFinalizeFailed:        {classify.StatusCritical, SeverityCritical, ActionRollback},
	CodeDependencyUnavailable: {classify.StatusError, SeverityError, ActionInspectDependencies},

	// Codes written by documents that predate status_class.
	"ref_not_found":         {classify.StatusError, SeverityError, ActionReselectReference},
	"invalid_edge_ref":      {classify.StatusError, SeverityError, ActionReselectReference},
	"invalid_face_ref":      {classify.StatusError, SeverityError, ActionReselectReference},
	"edge_index_shifted":    {classify.StatusWarningRecoverable, SeverityWarning, ActionAcceptDrift},
	"face_index_shifted":    {classify.StatusWarningRecoverable, SeverityWarning, ActionAcceptDrift},
	"geometry_healed":       {classify.StatusWarningRecoverable, SeverityInfo, ActionRebuild},
	"kernel_exception":      {classify.StatusCritical, SeverityCritical, ActionRollback},
	"fillet_failed":         {classify.StatusCritical, SeverityCritical, ActionRollback},
	"blocked_by_dependency": {classify.StatusBlocked, SeverityError, ActionInspectDependencies},
	"missing_history":       {classify.StatusError, SeverityError, ActionInspectDependencies},
}

// Classify looks up the classification of code. Unknown codes get the
// fallback; ok reports whether code was in the table.
func Classify(code Code) (c Classification, ok bool) {
	c, ok = table[code]
	if !ok {
		return fallback, false
	}
	return c, true
}

// CodeFor returns the current code for an outcome.
func CodeFor(o classify.Outcome) Code {
	if o.Status == classify.StatusBlocked {
		return CodeUpstreamFailed
	}
	switch o.Category {
	case classify.CategoryMissing:
		return CodeRefMissing
	case classify.CategoryMismatch:
		return CodeRefMismatch
	case classify.CategoryDrift:
		return CodeRefDrift
	case classify.CategoryFinalizeFailed:
		return CodeFinalizeFailed
	case classify.CategoryDependencyUnavailable:
		return CodeDependencyUnavailable
	}
	return ""
}
