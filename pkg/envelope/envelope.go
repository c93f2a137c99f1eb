// Package envelope builds the structured error/warning record that is the
// engine's only contract with the scheduler, UI and automation.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chazu/toponame/pkg/canon"
	"github.com/chazu/toponame/pkg/classify"
	"github.com/chazu/toponame/pkg/topo"
)

// SchemaVersion is written into every envelope.
const SchemaVersion = 1

// ErrNoFailure is returned by Build for an OK outcome.
var ErrNoFailure = errors.New("envelope: outcome has no failure")

// FeatureMeta identifies the feature an envelope is about.
type FeatureMeta struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

func (m FeatureMeta) label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Refs are the feature's reference indices in canonical form.
type Refs struct {
	EdgeIndices []int `json:"edge_indices"`
	FaceIndices []int `json:"face_indices"`
}

// ErrorEnvelope is the record handed to consumers for every non-OK
// feature outcome.
type ErrorEnvelope struct {
	SchemaVersion int                  `json:"schema_version"`
	Code          Code                 `json:"code"`
	StatusClass   classify.StatusClass `json:"status_class"`
	Severity      Severity             `json:"severity"`
	Feature       FeatureMeta          `json:"feature"`
	Refs          Refs                 `json:"refs"`
	TnpFailure    *classify.TnpFailure `json:"tnp_failure,omitempty"`
	Hint          string               `json:"hint"`
	NextAction    NextAction           `json:"next_action"`
}

// Build packages a classifier outcome. The returned envelope always has
// status_class, severity, hint and next_action set, and refs in canonical
// form regardless of the order they were passed in.
func Build(meta FeatureMeta, refs Refs, o classify.Outcome) (ErrorEnvelope, error) {
	if !o.Failed() {
		return ErrorEnvelope{}, ErrNoFailure
	}
	code := CodeFor(o)
	if code == "" {
		return ErrorEnvelope{}, fmt.Errorf("envelope: no code for status %s category %s", o.Status, o.Category)
	}
	cls, _ := Classify(code)

	env := ErrorEnvelope{
		SchemaVersion: SchemaVersion,
		Code:          code,
		StatusClass:   cls.Status,
		Severity:      cls.Severity,
		Feature:       meta,
		Refs: Refs{
			EdgeIndices: canon.Ints(refs.EdgeIndices),
			FaceIndices: canon.Ints(refs.FaceIndices),
		},
		NextAction: cls.NextAction,
	}
	if o.Failure != nil {
		f := *o.Failure
		env.TnpFailure = &f
	}
	env.Hint = hint(env, o)
	return env, nil
}

// Marshal encodes e. Equal envelopes always encode to equal bytes.
func Marshal(e ErrorEnvelope) ([]byte, error) {
	return json.Marshal(e)
}

// Details is the compact status record stored with a feature.
func (e ErrorEnvelope) Details() StatusDetails {
	return StatusDetails{
		Code:        e.Code,
		StatusClass: e.StatusClass.String(),
		Severity:    e.Severity,
		Message:     e.Hint,
	}
}

func hint(e ErrorEnvelope, o classify.Outcome) string {
	name := e.Feature.label()
	kind := "reference"
	reason := ""
	if f := e.TnpFailure; f != nil {
		if f.ReferenceKind.Valid() {
			kind = f.ReferenceKind.String()
		}
		reason = f.Reason
	}

	switch e.Code {
	case CodeRefMissing:
		return fmt.Sprintf("Reselect the %s on %q: %s.", kind, name, reason)
	case CodeRefMismatch:
		return fmt.Sprintf("Reselect the %s on %q; stored index and shape disagree: %s.", kind, name, reason)
	case CodeRefDrift:
		return fmt.Sprintf("Check the %s on %q and accept the drift if it is still the intended %s: %s.", kind, name, kind, reason)
	case CodeUpstreamFailed:
		return fmt.Sprintf("Fix upstream feature %q first; %q was not rebuilt.", o.Upstream, name)
	case CodeFinalizeFailed:
		return fmt.Sprintf("Roll back %q to the last good solid; the kernel failed: %s.", name, detail(o.Detail))
	case CodeDependencyUnavailable:
		return fmt.Sprintf("Kernel capability needed by %q is unavailable (%s); check the configured backend, then rebuild.", name, detail(o.Detail))
	}
	return fmt.Sprintf("Inspect the dependencies of %q.", name)
}

func detail(s string) string {
	if s == "" {
		return "no detail reported"
	}
	return s
}

// RefsOf converts slots to envelope refs, dropping slots without an index.
func RefsOf(path []topo.Slot) Refs {
	var edges, faces []int
	for _, s := range path {
		if !s.HasIndex() {
			continue
		}
		switch s.Type {
		case topo.ShapeEdge:
			edges = append(edges, s.Index)
		case topo.ShapeFace:
			faces = append(faces, s.Index)
		}
	}
	return Refs{EdgeIndices: canon.Ints(edges), FaceIndices: canon.Ints(faces)}
}
