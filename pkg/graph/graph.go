package graph

import (
	"fmt"
	"sort"
)

// FeatureGraph is the top-level structure produced by script evaluation or
// document load.
type FeatureGraph struct {
	Features  map[FeatureID]*Feature `json:"features"`
	Order     []FeatureID            `json:"order"` // declaration order
	NameIndex map[string]FeatureID   `json:"name_index"`
	Version   uint64                 `json:"version"`
}

// New creates an empty FeatureGraph.
func New() *FeatureGraph {
	return &FeatureGraph{
		Features:  make(map[FeatureID]*Feature),
		NameIndex: make(map[string]FeatureID),
	}
}

// Add appends a feature in declaration order and assigns its Seq. It does
// not check for duplicates; Validate does.
func (g *FeatureGraph) Add(f *Feature) {
	f.Seq = len(g.Order)
	if _, exists := g.Features[f.ID]; !exists {
		g.Order = append(g.Order, f.ID)
	}
	g.Features[f.ID] = f
	if f.Name != "" {
		if _, taken := g.NameIndex[f.Name]; !taken {
			g.NameIndex[f.Name] = f.ID
		}
	}
}

// Lookup returns the feature with the given user-assigned name, or nil.
func (g *FeatureGraph) Lookup(name string) *Feature {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Features[id]
}

// MustLookup returns the feature with the given name, or panics.
func (g *FeatureGraph) MustLookup(name string) *Feature {
	f := g.Lookup(name)
	if f == nil {
		panic(fmt.Sprintf("graph: no feature named %q", name))
	}
	return f
}

// Get returns the feature with the given ID, or nil.
func (g *FeatureGraph) Get(id FeatureID) *Feature {
	return g.Features[id]
}

// Resolve finds a feature by ID first, then by name.
func (g *FeatureGraph) Resolve(key string) *Feature {
	if f := g.Features[FeatureID(key)]; f != nil {
		return f
	}
	return g.Lookup(key)
}

// Len returns the number of features.
func (g *FeatureGraph) Len() int {
	return len(g.Features)
}

// Declared returns features in declaration order.
func (g *FeatureGraph) Declared() []*Feature {
	out := make([]*Feature, 0, len(g.Order))
	for _, id := range g.Order {
		if f := g.Features[id]; f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Bodies returns the body features in declaration order.
func (g *FeatureGraph) Bodies() []*Feature {
	var out []*Feature
	for _, f := range g.Declared() {
		if f.Class.IsBody() {
			out = append(out, f)
		}
	}
	return out
}

// TopoOrder returns every feature after all of its dependencies. Among
// features whose dependencies are satisfied, declaration order decides, so
// the result is the same for the same graph on every call. It fails on a
// cycle; dangling dependencies are ignored here and reported by Validate.
func (g *FeatureGraph) TopoOrder() ([]*Feature, error) {
	indegree := make(map[FeatureID]int, len(g.Features))
	users := make(map[FeatureID][]FeatureID)
	for id, f := range g.Features {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range uniqueDeps(f) {
			if _, ok := g.Features[dep]; !ok {
				continue
			}
			indegree[id]++
			users[dep] = append(users[dep], id)
		}
	}

	var ready []*Feature
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, g.Features[id])
		}
	}

	out := make([]*Feature, 0, len(g.Features))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Seq < ready[j].Seq })
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, u := range users[next.ID] {
			indegree[u]--
			if indegree[u] == 0 {
				ready = append(ready, g.Features[u])
			}
		}
	}
	if len(out) != len(g.Features) {
		return nil, fmt.Errorf("graph: dependency cycle among %d features", len(g.Features)-len(out))
	}
	return out, nil
}

// Dependents returns every feature that depends on id directly or
// transitively, in declaration order.
func (g *FeatureGraph) Dependents(id FeatureID) []*Feature {
	users := make(map[FeatureID][]FeatureID)
	for fid, f := range g.Features {
		for _, dep := range uniqueDeps(f) {
			users[dep] = append(users[dep], fid)
		}
	}
	seen := map[FeatureID]bool{id: true}
	queue := []FeatureID{id}
	var out []*Feature
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, u := range users[cur] {
			if seen[u] {
				continue
			}
			seen[u] = true
			queue = append(queue, u)
			out = append(out, g.Features[u])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Ancestors returns every feature id depends on, in declaration order.
func (g *FeatureGraph) Ancestors(id FeatureID) []*Feature {
	seen := map[FeatureID]bool{id: true}
	queue := []FeatureID{id}
	var out []*Feature
	for len(queue) > 0 {
		f := g.Features[queue[0]]
		queue = queue[1:]
		if f == nil {
			continue
		}
		for _, dep := range f.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if d := g.Features[dep]; d != nil {
				out = append(out, d)
				queue = append(queue, dep)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func uniqueDeps(f *Feature) []FeatureID {
	if len(f.Dependencies) < 2 {
		return f.Dependencies
	}
	seen := make(map[FeatureID]bool, len(f.Dependencies))
	out := make([]FeatureID, 0, len(f.Dependencies))
	for _, d := range f.Dependencies {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
