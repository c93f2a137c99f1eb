package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/toponame/pkg/graph"
	"github.com/chazu/toponame/pkg/store"
	"github.com/chazu/toponame/pkg/topo"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms feature script source before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: top-rail -> top_rail
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// A hyphen between identifier characters is kebab-case, not minus.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpFeatureRef wraps a graph.FeatureID so it can be passed between
// builtins, e.g. as the :on argument of a fillet.
type sexpFeatureRef struct {
	id   graph.FeatureID
	name string
}

func (r *sexpFeatureRef) SexpString(ps *zygo.PrintState) string {
	if r.name != "" {
		return fmt.Sprintf("(feature %q)", r.name)
	}
	return fmt.Sprintf("(feature %s)", r.id)
}
func (r *sexpFeatureRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string and returns the
// keyword name without prefix.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Trailing keyword with no value is a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts a boolean, a number (non-zero is true) or a bare flag.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpInt:
		return v.Val != 0, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toRawIndices converts a reference argument into raw authoring input for
// canonicalization. Anything that is not a number is passed through as a
// string so it is reported as dropped rather than failing evaluation.
func toRawIndices(s zygo.Sexp) []any {
	items, err := sexpListToSlice(s)
	if err != nil {
		items = []zygo.Sexp{s}
	}
	raw := make([]any, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case *zygo.SexpInt:
			raw = append(raw, v.Val)
		case *zygo.SexpFloat:
			raw = append(raw, v.Val)
		case *zygo.SexpStr:
			raw = append(raw, v.S)
		default:
			raw = append(raw, item.SexpString(nil))
		}
	}
	return raw
}

// ---------------------------------------------------------------------------
// Graph construction
// ---------------------------------------------------------------------------

// builder accumulates the graph for one evaluation. IDs come from its own
// counter, so evaluating the same source twice gives the same IDs.
type builder struct {
	g        *graph.FeatureGraph
	seq      int
	lastBody graph.FeatureID
	warnings []EvalWarning
}

func newBuilder() *builder {
	return &builder{g: graph.New()}
}

func (b *builder) nextID(c graph.Class) graph.FeatureID {
	id := graph.FeatureID(fmt.Sprintf("%s-%d", c, b.seq))
	b.seq++
	return id
}

func (b *builder) warn(f *graph.Feature, format string, args ...any) {
	b.warnings = append(b.warnings, EvalWarning{
		FeatureID: f.ID,
		Message:   fmt.Sprintf("%s %q: ", f.Class, f.Label()) + fmt.Sprintf(format, args...),
	})
}

// toDeps resolves a dependency argument: a feature reference, a name or ID
// string, or a list of those. Unknown names are kept as-is so validation
// can report them as dangling.
func (b *builder) toDeps(s zygo.Sexp) ([]graph.FeatureID, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		items = []zygo.Sexp{s}
	}
	var deps []graph.FeatureID
	for _, item := range items {
		switch v := item.(type) {
		case *sexpFeatureRef:
			deps = append(deps, v.id)
		case *zygo.SexpStr:
			if f := b.g.Resolve(v.S); f != nil {
				deps = append(deps, f.ID)
			} else {
				deps = append(deps, graph.FeatureID(v.S))
			}
		default:
			return nil, fmt.Errorf("expected feature or name, got %T (%s)", item, item.SexpString(nil))
		}
	}
	return deps, nil
}

// header reads the optional positional name and the :on and :after
// dependency arguments shared by every feature builtin.
func (b *builder) header(class graph.Class, pa kwArgs) (*graph.Feature, error) {
	f := &graph.Feature{ID: b.nextID(class), Class: class}
	if len(pa.positional) > 0 {
		name, err := toString(pa.positional[0])
		if err != nil {
			return nil, fmt.Errorf("%s: name: %w", class, err)
		}
		f.Name = name
	}
	for _, key := range []string{"on", "after"} {
		v, ok := pa.kw[key]
		if !ok {
			continue
		}
		deps, err := b.toDeps(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", class, key, err)
		}
		f.Dependencies = append(f.Dependencies, deps...)
	}
	return f, nil
}

// add registers f and returns a reference to it for use in later builtins.
func (b *builder) add(f *graph.Feature) zygo.Sexp {
	b.g.Add(f)
	if f.Class.IsBody() {
		b.lastBody = f.ID
	}
	return &sexpFeatureRef{id: f.ID, name: f.Name}
}

// number reads a required numeric keyword.
func number(class graph.Class, pa kwArgs, key string) (float64, error) {
	v, ok := pa.kw[key]
	if !ok {
		return 0, fmt.Errorf("%s: :%s is required", class, key)
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", class, key, err)
	}
	return f, nil
}

// optNumber reads an optional numeric keyword.
func optNumber(class graph.Class, pa kwArgs, key string) (float64, error) {
	if _, ok := pa.kw[key]; !ok {
		return 0, nil
	}
	return number(class, pa, key)
}

// referenceFeature builds a reference-consuming feature. refKey names the
// keyword that carries its indices. Without :on the feature applies to the
// most recently declared body.
func (b *builder) referenceFeature(class graph.Class, args []zygo.Sexp, refKey string,
	data func(kwArgs) (graph.FeatureData, error)) (zygo.Sexp, error) {

	pa := parseArgs(args)
	f, err := b.header(class, pa)
	if err != nil {
		return zygo.SexpNull, err
	}
	if _, ok := pa.kw["on"]; !ok && b.lastBody != "" {
		f.Dependencies = append([]graph.FeatureID{b.lastBody}, f.Dependencies...)
	}
	if f.Data, err = data(pa); err != nil {
		return zygo.SexpNull, err
	}

	var raw []any
	if v, ok := pa.kw[refKey]; ok {
		raw = toRawIndices(v)
	}
	kind, _ := class.RefKind()
	var dropped []any
	switch {
	case class.IsPath():
		f.Refs, dropped = store.NewPathSet(string(f.ID), kind, raw)
	case kind == topo.ShapeEdge:
		f.Refs, dropped = store.NewFeatureReferenceSet(string(f.ID), raw, nil)
	default:
		f.Refs, dropped = store.NewFeatureReferenceSet(string(f.ID), nil, raw)
	}
	for _, d := range dropped {
		b.warn(f, "dropped invalid %s reference %v", kind, d)
	}
	return b.add(f), nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the feature script builtins into a zygomys
// environment. Source must be preprocessed with preprocessSource so that
// :keyword tokens are recognizable.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// (vec3 x y z)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3: expected 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: component %d: %w", i, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (box "base" :size (vec3 40 20 10) :at (vec3 0 0 0) :after base)
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := b.header(graph.ClassBox, pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("box: :size is required")
		}
		var d graph.BoxData
		if d.Size, err = toVec3(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		if v, ok := pa.kw["at"]; ok {
			if d.Origin, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("box: at: %w", err)
			}
		}
		f.Data = d
		return b.add(f), nil
	})

	// (feature "base")
	env.AddFunction("feature", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("feature: expected 1 argument, got %d", len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("feature: %w", err)
		}
		f := b.g.Resolve(key)
		if f == nil {
			return zygo.SexpNull, fmt.Errorf("feature: no feature named %q", key)
		}
		return &sexpFeatureRef{id: f.ID, name: f.Name}, nil
	})

	// (fillet "round" :on base :radius 2 :edges (list 0 1 2))
	env.AddFunction("fillet", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.referenceFeature(graph.ClassFillet, args, "edges", func(pa kwArgs) (graph.FeatureData, error) {
			r, err := number(graph.ClassFillet, pa, "radius")
			return graph.FilletData{Radius: r}, err
		})
	})

	// (chamfer :on base :distance 1 :edges (list 4))
	env.AddFunction("chamfer", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.referenceFeature(graph.ClassChamfer, args, "edges", func(pa kwArgs) (graph.FeatureData, error) {
			d, err := number(graph.ClassChamfer, pa, "distance")
			return graph.ChamferData{Distance: d}, err
		})
	})

	// (hole :on base :diameter 3 :depth 5 :faces (list 1))
	env.AddFunction("hole", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.referenceFeature(graph.ClassHole, args, "faces", func(pa kwArgs) (graph.FeatureData, error) {
			dia, err := number(graph.ClassHole, pa, "diameter")
			if err != nil {
				return nil, err
			}
			depth, err := optNumber(graph.ClassHole, pa, "depth")
			return graph.HoleData{Diameter: dia, Depth: depth}, err
		})
	})

	// (shell :on base :thickness 1 :faces (list 5))
	env.AddFunction("shell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.referenceFeature(graph.ClassShell, args, "faces", func(pa kwArgs) (graph.FeatureData, error) {
			th, err := number(graph.ClassShell, pa, "thickness")
			return graph.ShellData{Thickness: th}, err
		})
	})

	// (sweep :on base :profile 0.5 :path (list 4 5 6))
	env.AddFunction("sweep", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.referenceFeature(graph.ClassSweep, args, "path", func(pa kwArgs) (graph.FeatureData, error) {
			r, err := number(graph.ClassSweep, pa, "profile")
			return graph.SweepData{ProfileRadius: r}, err
		})
	})

	// (loft :on (list base boss) :sections (list 0 3) :ruled true)
	env.AddFunction("loft", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.referenceFeature(graph.ClassLoft, args, "sections", func(pa kwArgs) (graph.FeatureData, error) {
			var d graph.LoftData
			if v, ok := pa.kw["ruled"]; ok {
				r, err := toBool(v)
				if err != nil {
					return nil, fmt.Errorf("loft: ruled: %w", err)
				}
				d.Ruled = r
			}
			return d, nil
		})
	})
}
