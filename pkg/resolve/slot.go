package resolve

import (
	"github.com/chazu/toponame/pkg/classify"
	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/topo"
	"go.uber.org/zap"
)

// SlotResolution is the outcome of resolving one reference slot.
type SlotResolution struct {
	Position int                   `json:"position"`
	Slot     topo.Slot             `json:"slot"`
	Result   topo.ResolutionResult `json:"result"` // what the feature will consume
	// ShapeResult is the shape-based answer alone; Unresolved when the slot
	// has no reference or nothing matched.
	ShapeResult topo.ResolutionResult `json:"shape_result"`
	Candidate   *classify.Candidate   `json:"-"`
}

// ResolveSlot resolves one slot at position pos and applies the
// single-slot conflict rule:
//
//   - shape and index agree: use it, no candidate
//   - weak shape result disagrees with a valid index: keep the index, Drift
//   - strong shape result disagrees with a valid index: use the shape, Mismatch
//   - shape resolves, stored index unusable: use the shape; Drift if weak
//   - shape unresolved, index valid: use the index, Drift if a reference was bound
//   - nothing resolves: Missing
//
// Candidate kinds are the legacy-policy reading; classify.Classify
// applies the caller's actual policy.
func (r *Resolver) ResolveSlot(pos int, slot topo.Slot, solid kernel.Solid, hist kernel.History) SlotResolution {
	out := SlotResolution{
		Position:    pos,
		Slot:        slot,
		Result:      topo.Unresolved(),
		ShapeResult: topo.Unresolved(),
	}

	var shapes []kernel.Shape
	if solid != nil {
		shapes = solid.Shapes(slot.Type)
	}
	indexValid := slot.Index >= 0 && slot.Index < len(shapes)
	indexResult := topo.Unresolved()
	if indexValid {
		indexResult = topo.ResolutionResult{
			Index:    slot.Index,
			Shape:    shapes[slot.Index].Handle,
			Strategy: topo.StrategyIndexOnly,
		}
	}

	if slot.HasRef() {
		out.ShapeResult = r.resolve(slot.Type, *slot.Ref, solid, hist)
	}
	sr := out.ShapeResult

	candidate := func(kind classify.Category) *classify.Candidate {
		return &classify.Candidate{
			Kind:            kind,
			RefKind:         slot.Type,
			Slot:            pos,
			IndexResolvable: indexValid,
			ShapeResolvable: sr.Resolved(),
			Confidence:      sr.Confidence,
			Expected:        slot.Index,
			Resolved:        sr.Index,
		}
	}

	switch {
	case !slot.HasRef():
		// Not yet bound: the raw index is all there is.
		if indexValid {
			out.Result = indexResult
		} else {
			out.Candidate = candidate(classify.CategoryMissing)
		}

	case sr.Resolved() && indexValid && sr.Index == slot.Index:
		out.Result = sr

	case sr.Resolved() && indexValid:
		if sr.Confidence == topo.ConfidenceStrong {
			out.Result = sr
			out.Candidate = candidate(classify.CategoryMismatch)
		} else {
			out.Result = indexResult
			out.Candidate = candidate(classify.CategoryDrift)
		}

	case sr.Resolved():
		out.Result = sr
		if slot.HasIndex() && sr.Confidence != topo.ConfidenceStrong {
			out.Candidate = candidate(classify.CategoryDrift)
		}

	case indexValid:
		out.Result = indexResult
		out.Candidate = candidate(classify.CategoryDrift)

	default:
		out.Candidate = candidate(classify.CategoryMissing)
	}

	if out.Candidate != nil {
		r.logger.Debug("slot candidate",
			zap.Int("slot", pos),
			zap.Stringer("type", slot.Type),
			zap.Int("stored_index", slot.Index),
			zap.Int("shape_index", sr.Index),
			zap.Stringer("confidence", sr.Confidence),
			zap.Stringer("kind", out.Candidate.Kind))
	}
	return out
}

// ResolveSlots resolves every slot of a path in order.
func (r *Resolver) ResolveSlots(path []topo.Slot, solid kernel.Solid, hist kernel.History) []SlotResolution {
	out := make([]SlotResolution, len(path))
	for i, s := range path {
		out[i] = r.ResolveSlot(i, s, solid, hist)
	}
	return out
}

// Candidates collects the non-nil candidates of rs in slot order.
func Candidates(rs []SlotResolution) []classify.Candidate {
	var out []classify.Candidate
	for _, res := range rs {
		if res.Candidate != nil {
			out = append(out, *res.Candidate)
		}
	}
	return out
}
