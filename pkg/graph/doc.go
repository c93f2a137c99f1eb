// Package graph defines the feature graph: the ordered DAG of bodies and
// reference-consuming features (fillets, holes, sweeps) produced by
// evaluating a feature script or loading a document.
//
// A graph is never mutated after construction except for binding shape
// references on first compute; each evaluation produces a new graph.
package graph
