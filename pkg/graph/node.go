package graph

import (
	"fmt"

	"github.com/chazu/toponame/pkg/store"
	"github.com/chazu/toponame/pkg/topo"
)

// FeatureID identifies a feature within one graph. IDs are derived from
// class and declaration order, so re-evaluating an unchanged script yields
// the same IDs.
type FeatureID string

// Class enumerates feature kinds.
type Class int

const (
	ClassBox     Class = iota // body primitive
	ClassFillet               // rounds edges
	ClassChamfer              // bevels edges
	ClassHole                 // bores into a face
	ClassShell                // hollows out, removing faces
	ClassSweep                // follows an ordered edge path
	ClassLoft                 // blends ordered face sections
)

var classNames = [...]string{
	ClassBox:     "box",
	ClassFillet:  "fillet",
	ClassChamfer: "chamfer",
	ClassHole:    "hole",
	ClassShell:   "shell",
	ClassSweep:   "sweep",
	ClassLoft:    "loft",
}

func (c Class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ParseClass converts a class name back to a Class.
func ParseClass(s string) (Class, error) {
	for i, name := range classNames {
		if name == s {
			return Class(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature class %q", s)
}

func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Class) UnmarshalText(b []byte) error {
	v, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// IsBody reports whether features of class c produce geometry rather than
// consume references.
func (c Class) IsBody() bool {
	return c == ClassBox
}

// RefKind is the shape type a reference-consuming class selects.
func (c Class) RefKind() (topo.ShapeType, bool) {
	switch c {
	case ClassFillet, ClassChamfer, ClassSweep:
		return topo.ShapeEdge, true
	case ClassHole, ClassShell, ClassLoft:
		return topo.ShapeFace, true
	default:
		return 0, false
	}
}

// IsPath reports whether the class keeps its references as ordered slots.
func (c Class) IsPath() bool {
	return c == ClassSweep || c == ClassLoft
}

// Feature is one node of the graph.
type Feature struct {
	ID           FeatureID   `json:"id"`
	Name         string      `json:"name,omitempty"`
	Class        Class       `json:"class"`
	Seq          int         `json:"seq"` // declaration order
	Dependencies []FeatureID `json:"dependencies,omitempty"`
	Data         FeatureData `json:"data"`

	// Refs is nil for bodies.
	Refs *store.FeatureReferenceSet `json:"refs,omitempty"`
}

// Label is the name shown to users, falling back to the ID.
func (f *Feature) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return string(f.ID)
}

// FeatureData is the class-specific payload.
type FeatureData interface {
	featureData() // restricts implementations to this package
	Params() map[string]float64
}
