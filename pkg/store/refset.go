// Package store holds the per-feature reference collections and their
// persistent form. Index data is canonicalized the moment it enters a
// FeatureReferenceSet, whether from a constructor, a mutation or a
// decoded document.
package store

import (
	"encoding/json"
	"sort"

	"github.com/chazu/toponame/pkg/canon"
	"github.com/chazu/toponame/pkg/topo"
)

// FeatureReferenceSet is everything one feature knows about the shapes it
// consumes. EdgeRefs and FaceRefs run parallel to EdgeIndices and
// FaceIndices; a nil entry is a slot that has not been bound yet. Path is
// used instead of the index lists by multi-slot features (sweep paths,
// loft sections) whose slot order is meaningful.
type FeatureReferenceSet struct {
	FeatureID   string                 `json:"feature_id"`
	EdgeIndices []int                  `json:"edge_indices"`
	FaceIndices []int                  `json:"face_indices"`
	EdgeRefs    []*topo.ShapeReference `json:"edge_refs,omitempty"`
	FaceRefs    []*topo.ShapeReference `json:"face_refs,omitempty"`
	Path        []topo.Slot            `json:"path,omitempty"`

	dropped []any
}

// NewFeatureReferenceSet builds a set from raw authoring input. Entries
// that are not valid indices are returned in dropped; duplicates collapse
// silently.
func NewFeatureReferenceSet(featureID string, edgesRaw, facesRaw []any) (*FeatureReferenceSet, []any) {
	s := &FeatureReferenceSet{
		FeatureID:   featureID,
		EdgeIndices: []int{},
		FaceIndices: []int{},
	}
	dropped := s.SetEdges(edgesRaw)
	dropped = append(dropped, s.SetFaces(facesRaw)...)
	return s, dropped
}

// NewPathSet builds a multi-slot set of shape type t.
func NewPathSet(featureID string, t topo.ShapeType, raw []any) (*FeatureReferenceSet, []any) {
	s := &FeatureReferenceSet{
		FeatureID:   featureID,
		EdgeIndices: []int{},
		FaceIndices: []int{},
	}
	return s, s.SetPath(t, raw)
}

// SetEdges replaces the edge indices. Refs bound to an index that is still
// present stay attached to it.
func (s *FeatureReferenceSet) SetEdges(raw []any) (dropped []any) {
	var valid []int
	valid, dropped = canon.Partition(raw)
	s.EdgeIndices, s.EdgeRefs = realign(valid, s.EdgeIndices, s.EdgeRefs)
	return dropped
}

// SetFaces replaces the face indices.
func (s *FeatureReferenceSet) SetFaces(raw []any) (dropped []any) {
	var valid []int
	valid, dropped = canon.Partition(raw)
	s.FaceIndices, s.FaceRefs = realign(valid, s.FaceIndices, s.FaceRefs)
	return dropped
}

// SetPath replaces the path with one slot per raw entry. Invalid entries
// become absent slots (and are reported as dropped) rather than being
// removed, so later slots keep their position. A ref stays bound to its
// position only while the index at that position is unchanged.
func (s *FeatureReferenceSet) SetPath(t topo.ShapeType, raw []any) (dropped []any) {
	old := s.Path
	path := make([]topo.Slot, len(raw))
	for i, v := range raw {
		idx := canon.Slot(v)
		if idx == canon.Absent {
			dropped = append(dropped, v)
		}
		path[i] = topo.Slot{Type: t, Index: idx}
		if i < len(old) && old[i].Type == t && old[i].Index == idx {
			path[i].Ref = old[i].Ref
		}
	}
	s.Path = path
	return dropped
}

// realign pairs a new canonical index list with refs bound to the old one.
func realign(next, prev []int, refs []*topo.ShapeReference) ([]int, []*topo.ShapeReference) {
	byIndex := make(map[int]*topo.ShapeReference, len(prev))
	for i, idx := range prev {
		if i < len(refs) && refs[i] != nil {
			byIndex[idx] = refs[i]
		}
	}
	var out []*topo.ShapeReference
	if len(byIndex) > 0 {
		out = make([]*topo.ShapeReference, len(next))
		for i, idx := range next {
			out[i] = byIndex[idx]
		}
	}
	return next, out
}

// IsPath reports whether the set is a multi-slot path.
func (s *FeatureReferenceSet) IsPath() bool {
	return len(s.Path) > 0
}

// Slots returns the set as a flat list in resolution order: the path for
// multi-slot sets, otherwise edges followed by faces.
func (s *FeatureReferenceSet) Slots() []topo.Slot {
	if s.IsPath() {
		return append([]topo.Slot(nil), s.Path...)
	}
	out := make([]topo.Slot, 0, len(s.EdgeIndices)+len(s.FaceIndices))
	for i, idx := range s.EdgeIndices {
		out = append(out, topo.Slot{Type: topo.ShapeEdge, Index: idx, Ref: refAt(s.EdgeRefs, i)})
	}
	for i, idx := range s.FaceIndices {
		out = append(out, topo.Slot{Type: topo.ShapeFace, Index: idx, Ref: refAt(s.FaceRefs, i)})
	}
	return out
}

func refAt(refs []*topo.ShapeReference, i int) *topo.ShapeReference {
	if i < len(refs) {
		return refs[i]
	}
	return nil
}

// Bound reports whether every slot has a reference.
func (s *FeatureReferenceSet) Bound() bool {
	for _, sl := range s.Slots() {
		if !sl.HasRef() {
			return false
		}
	}
	return true
}

// BindSlot attaches ref to the slot at position pos of Slots(). A slot
// that is already bound is left alone; ok reports whether ref was stored.
func (s *FeatureReferenceSet) BindSlot(pos int, ref topo.ShapeReference) (ok bool) {
	if pos < 0 {
		return false
	}
	if s.IsPath() {
		if pos >= len(s.Path) || s.Path[pos].HasRef() {
			return false
		}
		s.Path[pos].Ref = &ref
		return true
	}
	if pos < len(s.EdgeIndices) {
		return bind(&s.EdgeRefs, len(s.EdgeIndices), pos, ref)
	}
	pos -= len(s.EdgeIndices)
	if pos < len(s.FaceIndices) {
		return bind(&s.FaceRefs, len(s.FaceIndices), pos, ref)
	}
	return false
}

func bind(refs *[]*topo.ShapeReference, n, i int, ref topo.ShapeReference) bool {
	if len(*refs) < n {
		grown := make([]*topo.ShapeReference, n)
		copy(grown, *refs)
		*refs = grown
	}
	if (*refs)[i] != nil && !(*refs)[i].IsZero() {
		return false
	}
	(*refs)[i] = &ref
	return true
}

// Dropped returns the raw entries discarded when the set was decoded.
func (s *FeatureReferenceSet) Dropped() []any {
	return s.dropped
}

// Clone returns a deep copy. Bound references are immutable once set, so
// the copy shares them.
func (s *FeatureReferenceSet) Clone() *FeatureReferenceSet {
	if s == nil {
		return nil
	}
	c := &FeatureReferenceSet{
		FeatureID:   s.FeatureID,
		EdgeIndices: append([]int{}, s.EdgeIndices...),
		FaceIndices: append([]int{}, s.FaceIndices...),
	}
	if s.EdgeRefs != nil {
		c.EdgeRefs = append([]*topo.ShapeReference(nil), s.EdgeRefs...)
	}
	if s.FaceRefs != nil {
		c.FaceRefs = append([]*topo.ShapeReference(nil), s.FaceRefs...)
	}
	if s.Path != nil {
		c.Path = append([]topo.Slot(nil), s.Path...)
	}
	return c
}

// wireSet is the decoded form before canonicalization. Index entries stay
// untyped so that junk written by older versions can be dropped instead
// of failing the whole document.
type wireSet struct {
	FeatureID   string                 `json:"feature_id"`
	EdgeIndices []any                  `json:"edge_indices"`
	FaceIndices []any                  `json:"face_indices"`
	EdgeRefs    []*topo.ShapeReference `json:"edge_refs"`
	FaceRefs    []*topo.ShapeReference `json:"face_refs"`
	Path        []wireSlot             `json:"path"`
}

type wireSlot struct {
	Type  topo.ShapeType       `json:"type"`
	Index any                  `json:"index"`
	Ref   *topo.ShapeReference `json:"ref"`
}

// UnmarshalJSON canonicalizes index data on load. Refs stored alongside a
// non-canonical index list are carried with their index through sorting
// and deduplication.
func (s *FeatureReferenceSet) UnmarshalJSON(b []byte) error {
	var w wireSet
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := FeatureReferenceSet{FeatureID: w.FeatureID}
	var d []any
	out.EdgeIndices, out.EdgeRefs, d = canonPairs(w.EdgeIndices, w.EdgeRefs)
	out.dropped = append(out.dropped, d...)
	out.FaceIndices, out.FaceRefs, d = canonPairs(w.FaceIndices, w.FaceRefs)
	out.dropped = append(out.dropped, d...)

	if len(w.Path) > 0 {
		out.Path = make([]topo.Slot, len(w.Path))
		for i, ws := range w.Path {
			idx := canon.Slot(ws.Index)
			if idx == canon.Absent && ws.Index != nil && !absentMarker(ws.Index) {
				out.dropped = append(out.dropped, ws.Index)
			}
			out.Path[i] = topo.Slot{Type: ws.Type, Index: idx, Ref: ws.Ref}
		}
	}
	*s = out
	return nil
}

// absentMarker reports whether v is the Absent value a path slot is
// written with, as opposed to junk.
func absentMarker(v any) bool {
	switch x := v.(type) {
	case float64:
		return x == canon.Absent
	case int:
		return x == canon.Absent
	case json.Number:
		n, err := x.Int64()
		return err == nil && n == canon.Absent
	}
	return false
}

type pair struct {
	index int
	ref   *topo.ShapeReference
}

func canonPairs(raw []any, refs []*topo.ShapeReference) ([]int, []*topo.ShapeReference, []any) {
	withRefs := len(refs) == len(raw) && len(refs) > 0
	var pairs []pair
	var dropped []any
	for i, v := range raw {
		idx := canon.Slot(v)
		if idx == canon.Absent {
			dropped = append(dropped, v)
			continue
		}
		p := pair{index: idx}
		if withRefs {
			p.ref = refs[i]
		}
		pairs = append(pairs, p)
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].index < pairs[j].index })

	indices := []int{}
	var outRefs []*topo.ShapeReference
	for i, p := range pairs {
		if i > 0 && pairs[i-1].index == p.index {
			// Keep the first bound ref of a duplicated index.
			if withRefs && outRefs[len(outRefs)-1] == nil {
				outRefs[len(outRefs)-1] = p.ref
			}
			continue
		}
		indices = append(indices, p.index)
		if withRefs {
			outRefs = append(outRefs, p.ref)
		}
	}
	return indices, outRefs, dropped
}

// Adopt copies bound references from prev, a set loaded for the same
// feature from an earlier session, onto unbound slots of s whose index is
// unchanged. It returns the number of slots adopted.
func (s *FeatureReferenceSet) Adopt(prev *FeatureReferenceSet) int {
	if prev == nil {
		return 0
	}
	n := 0
	if s.IsPath() {
		for i := range s.Path {
			if i >= len(prev.Path) || s.Path[i].HasRef() {
				continue
			}
			p := prev.Path[i]
			if p.Type == s.Path[i].Type && p.Index == s.Path[i].Index && p.HasRef() {
				s.Path[i].Ref = p.Ref
				n++
			}
		}
		return n
	}
	n += adoptList(s.EdgeIndices, &s.EdgeRefs, prev.EdgeIndices, prev.EdgeRefs)
	n += adoptList(s.FaceIndices, &s.FaceRefs, prev.FaceIndices, prev.FaceRefs)
	return n
}

func adoptList(indices []int, refs *[]*topo.ShapeReference, prevIndices []int, prevRefs []*topo.ShapeReference) int {
	_, carried := realign(indices, prevIndices, prevRefs)
	n := 0
	for i, ref := range carried {
		if ref != nil && bind(refs, len(indices), i, *ref) {
			n++
		}
	}
	return n
}
