package graph

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a validation finding blocks a
// rebuild or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks rebuild
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	FeatureID FeatureID          // which feature has the problem (empty if graph-level)
	Message   string             // human-readable description
	Severity  ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.FeatureID == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] feature %s: %s", e.Severity, e.FeatureID, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	FeatureID FeatureID
	Message   string
}

// ValidationResult bundles errors (blocking) and warnings (advisory) from
// all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate runs the structural checks and returns every finding, errors
// first within each check. An empty slice means the graph is valid. The
// graph is never mutated.
func Validate(g *FeatureGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateDependencies(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateReferenceTargets(g)...)
	return errs
}

// ValidateAll runs structural and parameter checks and separates errors
// from warnings.
func ValidateAll(g *FeatureGraph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{FeatureID: e.FeatureID, Message: e.Message})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}

	paramErrs, paramWarnings := validateParams(g)
	result.Errors = append(result.Errors, paramErrs...)
	result.Warnings = append(result.Warnings, paramWarnings...)
	return result
}

// declared returns feature ids in declaration order so findings come out
// in a stable order.
func declared(g *FeatureGraph) []FeatureID {
	ids := append([]FeatureID(nil), g.Order...)
	if len(ids) == len(g.Features) {
		return ids
	}
	// Features added without Add: fall back to id order.
	ids = ids[:0]
	for id := range g.Features {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// validateDAG checks for cycles using DFS with 3-colour marking. White is
// unvisited, gray is on the current path, black is fully explored; meeting
// a gray feature means a cycle.
func validateDAG(g *FeatureGraph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[FeatureID]int)
	var errs []ValidationError

	var visit func(id FeatureID) bool
	visit = func(id FeatureID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				FeatureID: id,
				Message:   fmt.Sprintf("dependency cycle through feature %s", id),
				Severity:  SeverityError,
			})
			return true
		}

		color[id] = gray
		f, ok := g.Features[id]
		if !ok {
			// Dangling; validateDependencies reports it.
			color[id] = black
			return false
		}
		for _, dep := range f.Dependencies {
			if visit(dep) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range declared(g) {
		if color[id] == white && visit(id) {
			// One cycle error is enough.
			break
		}
	}
	return errs
}

// validateDependencies checks that every dependency names an existing
// feature other than the feature itself.
func validateDependencies(g *FeatureGraph) []ValidationError {
	var errs []ValidationError
	for _, id := range declared(g) {
		f := g.Features[id]
		for _, dep := range f.Dependencies {
			if dep == id {
				errs = append(errs, ValidationError{
					FeatureID: id,
					Message:   "feature depends on itself",
					Severity:  SeverityError,
				})
				continue
			}
			if _, ok := g.Features[dep]; !ok {
				errs = append(errs, ValidationError{
					FeatureID: id,
					Message:   fmt.Sprintf("dependency %q does not exist", dep),
					Severity:  SeverityError,
				})
			}
		}
	}
	return errs
}

// validateNames checks that NameIndex points at existing features and that
// no two features share a name.
func validateNames(g *FeatureGraph) []ValidationError {
	var errs []ValidationError

	names := make([]string, 0, len(g.NameIndex))
	for name := range g.NameIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := g.Features[g.NameIndex[name]]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent feature %s", name, g.NameIndex[name]),
				Severity: SeverityError,
			})
		}
	}

	count := make(map[string]int)
	var order []string
	for _, id := range declared(g) {
		name := g.Features[id].Name
		if name == "" {
			continue
		}
		if count[name] == 0 {
			order = append(order, name)
		}
		count[name]++
	}
	for _, name := range order {
		if count[name] > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d features", name, count[name]),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateReferenceTargets checks that every reference-consuming feature
// sits downstream of at least one body, has a reference set of the right
// shape, and warns when that set is empty.
func validateReferenceTargets(g *FeatureGraph) []ValidationError {
	var errs []ValidationError
	for _, id := range declared(g) {
		f := g.Features[id]
		if f.Class.IsBody() {
			if f.Refs != nil {
				errs = append(errs, ValidationError{
					FeatureID: id,
					Message:   "body feature carries shape references",
					Severity:  SeverityWarning,
				})
			}
			continue
		}

		hasBody := false
		for _, a := range g.Ancestors(id) {
			if a.Class.IsBody() {
				hasBody = true
				break
			}
		}
		if !hasBody {
			errs = append(errs, ValidationError{
				FeatureID: id,
				Message:   fmt.Sprintf("%s %q has no upstream body to reference", f.Class, f.Label()),
				Severity:  SeverityError,
			})
		}

		if f.Refs == nil {
			errs = append(errs, ValidationError{
				FeatureID: id,
				Message:   fmt.Sprintf("%s %q has no reference set", f.Class, f.Label()),
				Severity:  SeverityError,
			})
			continue
		}
		if f.Class.IsPath() != f.Refs.IsPath() && len(f.Refs.Slots()) > 0 {
			want := "an index set"
			if f.Class.IsPath() {
				want = "an ordered path"
			}
			errs = append(errs, ValidationError{
				FeatureID: id,
				Message:   fmt.Sprintf("%s references must be %s", f.Class, want),
				Severity:  SeverityError,
			})
		}
		if len(f.Refs.Slots()) == 0 {
			errs = append(errs, ValidationError{
				FeatureID: id,
				Message:   fmt.Sprintf("%s %q references no shapes", f.Class, f.Label()),
				Severity:  SeverityWarning,
			})
		}
	}
	return errs
}
