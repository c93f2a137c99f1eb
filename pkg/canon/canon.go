// Package canon normalizes raw index collections into the canonical form
// stored on every feature: ascending, deduplicated, non-negative ints.
//
// Canonicalization never logs. Callers that care about dropped entries use
// Partition and report them themselves.
package canon

import (
	"encoding/json"
	"math"
	"sort"
)

// Absent marks a structural slot whose raw index was unusable.
const Absent = -1

// Canonicalize returns the sorted, deduplicated, non-negative integers in
// raw. Anything else (negative values, strings, bools, fractional floats,
// nil) is dropped. The result depends only on the set of valid values.
func Canonicalize(raw []any) []int {
	valid, _ := Partition(raw)
	return valid
}

// Partition is Canonicalize that also returns the dropped entries, in
// input order, so the caller can log them.
func Partition(raw []any) (valid []int, dropped []any) {
	seen := make(map[int]struct{}, len(raw))
	valid = make([]int, 0, len(raw))
	for _, v := range raw {
		n, ok := toIndex(v)
		if !ok {
			dropped = append(dropped, v)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		valid = append(valid, n)
	}
	sort.Ints(valid)
	return valid, dropped
}

// Ints canonicalizes an already typed slice. The input is not modified.
func Ints(raw []int) []int {
	out := make([]int, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, n := range raw {
		if n < 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// IsCanonical reports whether xs is already in canonical form.
func IsCanonical(xs []int) bool {
	for i, n := range xs {
		if n < 0 {
			return false
		}
		if i > 0 && xs[i-1] >= n {
			return false
		}
	}
	return true
}

// Slots is the structural variant for multi-slot features (a sweep path,
// loft sections) where slot order carries meaning. Each slot is
// canonicalized on its own: valid indices are kept as is, anything else
// becomes Absent. Order and length are preserved and nothing is deduped.
func Slots(raw []any) []int {
	out := make([]int, len(raw))
	for i, v := range raw {
		n, ok := toIndex(v)
		if !ok {
			n = Absent
		}
		out[i] = n
	}
	return out
}

// Slot canonicalizes a single structural slot value.
func Slot(v any) int {
	if n, ok := toIndex(v); ok {
		return n
	}
	return Absent
}

func toIndex(v any) (int, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt32 {
			return 0, false
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt32 {
			return 0, false
		}
		n = int64(x)
	case float32:
		return floatIndex(float64(x))
	case float64:
		// JSON decodes every number as float64; integral values are kept.
		return floatIndex(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return 0, false
			}
			return floatIndex(f)
		}
		n = i
	default:
		return 0, false
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func floatIndex(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
