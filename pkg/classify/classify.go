// Package classify turns resolver disagreements into failure categories
// under an explicit strict/legacy fallback policy, and maps categories to
// the status classes the scheduler acts on.
//
// The policy flag is a parameter of every call. There is no package-level
// policy state.
package classify

import (
	"fmt"

	"github.com/chazu/toponame/pkg/topo"
)

// Category is the failure taxonomy.
type Category int

const (
	CategoryNone Category = iota
	CategoryDrift
	CategoryMismatch
	CategoryMissing
	CategoryFinalizeFailed
	CategoryDependencyUnavailable
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "None"
	case CategoryDrift:
		return "Drift"
	case CategoryMismatch:
		return "Mismatch"
	case CategoryMissing:
		return "Missing"
	case CategoryFinalizeFailed:
		return "FinalizeFailed"
	case CategoryDependencyUnavailable:
		return "DependencyUnavailable"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	for k := CategoryNone; k <= CategoryDependencyUnavailable; k++ {
		if k.String() == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", b)
}

// rank orders naming categories by severity for Worst.
func (c Category) rank() int {
	switch c {
	case CategoryMissing:
		return 3
	case CategoryMismatch:
		return 2
	case CategoryDrift:
		return 1
	default:
		return 0
	}
}

// Candidate is a resolver's report of a slot it could not settle cleanly.
// Kind is the resolver's own reading (which is the legacy-mode answer);
// the other fields are the evidence the decision table looks at.
type Candidate struct {
	Kind            Category
	RefKind         topo.ShapeType
	Slot            int
	IndexResolvable bool
	ShapeResolvable bool
	Confidence      topo.Confidence
	Expected        int // stored raw index, -1 if none
	Resolved        int // index the shape evidence points at, -1 if none
}

// TnpFailure is the classified failure for one reference slot.
type TnpFailure struct {
	Category      Category       `json:"category"`
	ReferenceKind topo.ShapeType `json:"reference_kind"`
	Reason        string         `json:"reason"`
	Strict        bool           `json:"strict"`
	Expected      int            `json:"expected"`
	Resolved      int            `json:"resolved"`
	Slot          int            `json:"-"`
}

// Classify applies the fallback policy to a candidate.
//
//	index  shape  confidence  strict  -> category
//	yes    yes    strong      any        Mismatch
//	yes    yes    weak        no         Drift
//	yes    yes    weak        yes        Mismatch
//	no     yes    weak        no         Drift
//	no     yes    weak        yes        Mismatch
//	yes    no     -           no         Drift
//	yes    no     -           yes        Missing
//	no     no     -           any        Missing
//
// A strong shape result with no usable index is not a candidate at all;
// the resolver accepts lineage over a stale index silently.
func Classify(c Candidate, strict bool) TnpFailure {
	f := TnpFailure{
		ReferenceKind: c.RefKind,
		Strict:        strict,
		Expected:      c.Expected,
		Resolved:      c.Resolved,
		Slot:          c.Slot,
	}

	switch {
	case c.IndexResolvable && c.ShapeResolvable && c.Confidence == topo.ConfidenceStrong:
		f.Category = CategoryMismatch
		f.Reason = fmt.Sprintf("%s slot %d: history resolves to index %d but the stored index is %d",
			c.RefKind, c.Slot, c.Resolved, c.Expected)

	case c.IndexResolvable && c.ShapeResolvable:
		if strict {
			f.Category = CategoryMismatch
			f.Reason = fmt.Sprintf("%s slot %d: weak geometric match %d contradicts stored index %d; strict policy refuses geometric rescue",
				c.RefKind, c.Slot, c.Resolved, c.Expected)
		} else {
			f.Category = CategoryDrift
			f.Reason = fmt.Sprintf("%s slot %d: weak geometric match %d disagrees with stored index %d; keeping the index",
				c.RefKind, c.Slot, c.Resolved, c.Expected)
		}

	case c.ShapeResolvable && c.Confidence == topo.ConfidenceStrong:
		// Lineage found the shape and there is no index to contradict it.
		f.Category = CategoryNone

	case c.ShapeResolvable:
		if strict {
			f.Category = CategoryMismatch
			f.Reason = fmt.Sprintf("%s slot %d: stored index %d is unusable and only a weak geometric match (%d) exists; strict policy refuses geometric rescue",
				c.RefKind, c.Slot, c.Expected, c.Resolved)
		} else {
			f.Category = CategoryDrift
			f.Reason = fmt.Sprintf("%s slot %d: stored index %d is unusable; recovered by geometric match %d",
				c.RefKind, c.Slot, c.Expected, c.Resolved)
		}

	case c.IndexResolvable:
		if strict {
			f.Category = CategoryMissing
			f.Reason = fmt.Sprintf("%s slot %d: referenced shape no longer exists; stored index %d has no shape evidence behind it",
				c.RefKind, c.Slot, c.Expected)
		} else {
			f.Category = CategoryDrift
			f.Reason = fmt.Sprintf("%s slot %d: referenced shape not found; falling back to stored index %d",
				c.RefKind, c.Slot, c.Expected)
		}

	default:
		f.Category = CategoryMissing
		f.Reason = fmt.Sprintf("%s slot %d: reference no longer resolves by history, geometry or index (stored index %d)",
			c.RefKind, c.Slot, c.Expected)
	}
	return f
}

// Worst picks the failure reported for a feature: Missing over Mismatch
// over Drift, ties broken by the order failures were produced (canonical
// slot order). ok is false when there is nothing to report.
func Worst(failures []TnpFailure) (worst TnpFailure, ok bool) {
	for _, f := range failures {
		if f.Category.rank() == 0 {
			continue
		}
		if !ok || f.Category.rank() > worst.Category.rank() {
			worst, ok = f, true
		}
	}
	return worst, ok
}
