package graph

import (
	"fmt"

	"github.com/chazu/toponame/pkg/store"
)

// ToDocument converts g to its persisted form, in declaration order.
// Reference sets are cloned so the document does not alias the graph.
func ToDocument(g *FeatureGraph) *store.Document {
	d := store.NewDocument()
	for _, f := range g.Declared() {
		rec := store.FeatureRecord{
			ID:    string(f.ID),
			Name:  f.Name,
			Class: f.Class.String(),
			Refs:  f.Refs.Clone(),
		}
		if f.Data != nil {
			rec.Params = f.Data.Params()
		}
		for _, dep := range f.Dependencies {
			rec.Dependencies = append(rec.Dependencies, string(dep))
		}
		d.Features = append(d.Features, rec)
	}
	return d
}

// FromDocument rebuilds a graph from a decoded document.
func FromDocument(d *store.Document) (*FeatureGraph, error) {
	g := New()
	for _, rec := range d.Features {
		if _, dup := g.Features[FeatureID(rec.ID)]; dup {
			return nil, fmt.Errorf("document %s: duplicate feature id %q", d.DocumentID, rec.ID)
		}
		class, err := ParseClass(rec.Class)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", rec.ID, err)
		}
		data, err := DataFromParams(class, rec.Params)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", rec.ID, err)
		}
		f := &Feature{
			ID:    FeatureID(rec.ID),
			Name:  rec.Name,
			Class: class,
			Data:  data,
			Refs:  rec.Refs.Clone(),
		}
		for _, dep := range rec.Dependencies {
			f.Dependencies = append(f.Dependencies, FeatureID(dep))
		}
		if !class.IsBody() && f.Refs == nil {
			f.Refs, _ = store.NewFeatureReferenceSet(rec.ID, nil, nil)
		}
		g.Add(f)
	}
	return g, nil
}

// AdoptBindings copies bound shape references from a previously saved
// document onto features of g with the same ID and class. It returns the
// number of slots adopted.
func (g *FeatureGraph) AdoptBindings(d *store.Document) int {
	if d == nil {
		return 0
	}
	n := 0
	for _, f := range g.Declared() {
		if f.Refs == nil {
			continue
		}
		rec, ok := d.Feature(string(f.ID))
		if !ok || rec.Class != f.Class.String() {
			continue
		}
		n += f.Refs.Adopt(rec.Refs)
	}
	return n
}
