package topo

import (
	"fmt"
	"strconv"
	"strings"
)

// ShapeType is the closed set of topological entity kinds a reference can
// point at.
type ShapeType int

const (
	ShapeFace ShapeType = iota
	ShapeEdge
	ShapeVertex
)

// ShapeTypes lists every ShapeType in enumeration order.
var ShapeTypes = [...]ShapeType{ShapeFace, ShapeEdge, ShapeVertex}

func (t ShapeType) String() string {
	switch t {
	case ShapeFace:
		return "face"
	case ShapeEdge:
		return "edge"
	case ShapeVertex:
		return "vertex"
	default:
		return fmt.Sprintf("ShapeType(%d)", int(t))
	}
}

// Valid reports whether t is one of the declared shape types.
func (t ShapeType) Valid() bool {
	switch t {
	case ShapeFace, ShapeEdge, ShapeVertex:
		return true
	}
	return false
}

// ParseShapeType converts "face", "edge" or "vertex" to a ShapeType.
func ParseShapeType(s string) (ShapeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "face":
		return ShapeFace, nil
	case "edge":
		return ShapeEdge, nil
	case "vertex":
		return ShapeVertex, nil
	}
	return 0, fmt.Errorf("unknown shape type %q", s)
}

func (t ShapeType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", t)
	}
	return []byte(t.String()), nil
}

func (t *ShapeType) UnmarshalText(b []byte) error {
	v, err := ParseShapeType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ShapeID identifies a topological entity by the feature that first
// produced it. It is minted once and compared by value.
type ShapeID struct {
	FeatureID string    `json:"feature_id"`
	LocalID   int       `json:"local_id"`
	ShapeType ShapeType `json:"shape_type"`
}

// IsZero reports whether id was never assigned.
func (id ShapeID) IsZero() bool {
	return id.FeatureID == ""
}

// String renders id as feature/type/local, e.g. "base/edge/3".
func (id ShapeID) String() string {
	return id.FeatureID + "/" + id.ShapeType.String() + "/" + strconv.Itoa(id.LocalID)
}

// ParseShapeID is the inverse of ShapeID.String. Feature IDs may contain
// slashes; the last two segments are always type and local id.
func ParseShapeID(s string) (ShapeID, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return ShapeID{}, fmt.Errorf("malformed shape id %q", s)
	}
	n := len(parts)
	st, err := ParseShapeType(parts[n-2])
	if err != nil {
		return ShapeID{}, fmt.Errorf("shape id %q: %w", s, err)
	}
	local, err := strconv.Atoi(parts[n-1])
	if err != nil || local < 0 {
		return ShapeID{}, fmt.Errorf("shape id %q: bad local id", s)
	}
	feature := strings.Join(parts[:n-2], "/")
	if feature == "" {
		return ShapeID{}, fmt.Errorf("shape id %q: empty feature", s)
	}
	return ShapeID{FeatureID: feature, LocalID: local, ShapeType: st}, nil
}

// Handle is a non-owning lookup key into the kernel's shape history. The
// engine never dereferences it; it only hands it back to the kernel.
type Handle string
