// Package topo defines the value types shared by the reference resolution
// engine: shape identities, stored references and resolution results.
// Everything in this package is an immutable value; nothing here talks to
// a geometry kernel.
package topo
