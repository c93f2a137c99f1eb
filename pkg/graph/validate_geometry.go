package graph

import (
	"fmt"

	"github.com/chazu/toponame/pkg/topo"
)

// ---------------------------------------------------------------------------
// Tier 2: parameter and reference-shape validation (errors + warnings)
// ---------------------------------------------------------------------------

// validateParams runs every per-class parameter check in declaration
// order.
func validateParams(g *FeatureGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	for _, id := range declared(g) {
		f := g.Features[id]
		errs = append(errs, validateData(f)...)
		e, w := validateSlots(f)
		errs = append(errs, e...)
		warnings = append(warnings, w...)
	}
	return errs, warnings
}

func positive(f *Feature, what string, v float64) []ValidationError {
	if v > 0 {
		return nil
	}
	return []ValidationError{{
		FeatureID: f.ID,
		Message:   fmt.Sprintf("%s %s is %.4f, must be positive", f.Class, what, v),
		Severity:  SeverityError,
	}}
}

// classOf is the class a payload belongs to.
func classOf(d FeatureData) Class {
	switch d.(type) {
	case FilletData:
		return ClassFillet
	case ChamferData:
		return ClassChamfer
	case HoleData:
		return ClassHole
	case ShellData:
		return ClassShell
	case SweepData:
		return ClassSweep
	case LoftData:
		return ClassLoft
	default:
		return ClassBox
	}
}

func validateData(f *Feature) []ValidationError {
	if f.Data == nil {
		return []ValidationError{{FeatureID: f.ID, Message: "feature has no data", Severity: SeverityError}}
	}
	if c := classOf(f.Data); c != f.Class {
		return []ValidationError{{
			FeatureID: f.ID,
			Message:   fmt.Sprintf("%s data attached to a %s", c, f.Class),
			Severity:  SeverityError,
		}}
	}

	switch d := f.Data.(type) {
	case BoxData:
		var errs []ValidationError
		errs = append(errs, positive(f, "size X", d.Size.X)...)
		errs = append(errs, positive(f, "size Y", d.Size.Y)...)
		errs = append(errs, positive(f, "size Z", d.Size.Z)...)
		return errs
	case FilletData:
		return positive(f, "radius", d.Radius)
	case ChamferData:
		return positive(f, "distance", d.Distance)
	case HoleData:
		errs := positive(f, "diameter", d.Diameter)
		if d.Depth < 0 {
			errs = append(errs, ValidationError{
				FeatureID: f.ID,
				Message:   fmt.Sprintf("hole depth is %.4f, must be zero (through) or positive", d.Depth),
				Severity:  SeverityError,
			})
		}
		return errs
	case ShellData:
		return positive(f, "thickness", d.Thickness)
	case SweepData:
		return positive(f, "profile radius", d.ProfileRadius)
	}
	return nil
}

// validateSlots checks slot counts and types for reference features.
func validateSlots(f *Feature) ([]ValidationError, []ValidationWarning) {
	if f.Class.IsBody() || f.Refs == nil {
		return nil, nil
	}
	var errs []ValidationError
	var warnings []ValidationWarning
	want, _ := f.Class.RefKind()
	slots := f.Refs.Slots()

	switch f.Class {
	case ClassSweep:
		if len(slots) < 1 {
			errs = append(errs, ValidationError{FeatureID: f.ID, Message: "sweep path needs at least 1 edge", Severity: SeverityError})
		}
	case ClassLoft:
		if len(slots) < 2 {
			errs = append(errs, ValidationError{
				FeatureID: f.ID,
				Message:   fmt.Sprintf("loft needs at least 2 sections, has %d", len(slots)),
				Severity:  SeverityError,
			})
		}
	}

	for i, s := range slots {
		if f.Class.IsPath() && s.Type != want {
			errs = append(errs, ValidationError{
				FeatureID: f.ID,
				Message:   fmt.Sprintf("slot %d is a %s, %s needs %ss", i, s.Type, f.Class, want),
				Severity:  SeverityError,
			})
		}
		if f.Class.IsPath() && !s.HasIndex() && !s.HasRef() {
			warnings = append(warnings, ValidationWarning{
				FeatureID: f.ID,
				Message:   fmt.Sprintf("%s slot %d is empty and will not resolve", f.Class, i),
			})
		}
	}

	if !f.Class.IsPath() {
		if want == topo.ShapeEdge && len(f.Refs.FaceIndices) > 0 {
			warnings = append(warnings, ValidationWarning{FeatureID: f.ID, Message: fmt.Sprintf("%s ignores face references", f.Class)})
		}
		if want == topo.ShapeFace && len(f.Refs.EdgeIndices) > 0 {
			warnings = append(warnings, ValidationWarning{FeatureID: f.ID, Message: fmt.Sprintf("%s ignores edge references", f.Class)})
		}
	}
	return errs, warnings
}
