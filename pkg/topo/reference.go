package topo

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// GeometricSelector is an approximate fingerprint of a shape. It is only
// ever used as a fallback matcher, never as identity.
type GeometricSelector struct {
	Centroid  v3.Vec  `json:"centroid"`
	Direction v3.Vec  `json:"direction"` // face normal or edge tangent; zero for vertices
	Size      float64 `json:"size"`      // edge length, face extent; zero for vertices
}

// IsZero reports whether no fingerprint was recorded.
func (g GeometricSelector) IsZero() bool {
	return g == GeometricSelector{}
}

// LegacySelector is the point-based matcher written by documents that
// predate ShapeID.
type LegacySelector struct {
	Point v3.Vec `json:"point"`
}

// ShapeReference is the stored form of a reference to one shape.
type ShapeReference struct {
	RefID        ShapeID           `json:"ref_id"`
	NativeHandle Handle            `json:"native_handle,omitempty"`
	Geometric    GeometricSelector `json:"geometric_selector"`
	Legacy       *LegacySelector   `json:"legacy_selector,omitempty"`
}

// IsZero reports whether the reference carries no evidence at all.
func (r ShapeReference) IsZero() bool {
	return r.RefID.IsZero() && r.NativeHandle == "" && r.Geometric.IsZero() && r.Legacy == nil
}

// Strategy names the resolver stage that produced a result.
type Strategy int

const (
	StrategyUnresolved Strategy = iota
	StrategyHistory
	StrategyGeometric
	StrategyLegacy
	StrategyIndexOnly
)

func (s Strategy) String() string {
	switch s {
	case StrategyUnresolved:
		return "unresolved"
	case StrategyHistory:
		return "history"
	case StrategyGeometric:
		return "geometric"
	case StrategyLegacy:
		return "legacy"
	case StrategyIndexOnly:
		return "index_only"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Confidence grades a resolution. Only history-based lineage is Strong.
type Confidence int

const (
	ConfidenceWeak Confidence = iota
	ConfidenceStrong
)

func (c Confidence) String() string {
	if c == ConfidenceStrong {
		return "strong"
	}
	return "weak"
}

func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ResolutionResult is the answer to "which shape does this reference mean
// now". Index is the position in the current solid's enumeration of the
// reference's shape type, or -1 when nothing was found.
type ResolutionResult struct {
	Index      int        `json:"resolved_index"`
	Shape      Handle     `json:"resolved_shape,omitempty"`
	Strategy   Strategy   `json:"strategy_used"`
	Confidence Confidence `json:"confidence"`
}

// Unresolved returns the result for a reference no strategy could place.
func Unresolved() ResolutionResult {
	return ResolutionResult{Index: -1, Strategy: StrategyUnresolved}
}

// Resolved reports whether a shape was found.
func (r ResolutionResult) Resolved() bool {
	return r.Index >= 0
}

// Slot is one position of a feature's reference collection: the raw index
// recorded at authoring time plus, once the feature has been computed, the
// shape reference bound to it. Index is -1 when no usable index exists.
type Slot struct {
	Type  ShapeType       `json:"type"`
	Index int             `json:"index"`
	Ref   *ShapeReference `json:"ref,omitempty"`
}

// HasIndex reports whether the slot carries a raw index.
func (s Slot) HasIndex() bool {
	return s.Index >= 0
}

// HasRef reports whether a non-empty shape reference is bound.
func (s Slot) HasRef() bool {
	return s.Ref != nil && !s.Ref.IsZero()
}
