package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chazu/toponame/pkg/envelope"
	"github.com/google/uuid"
)

// DocumentSchemaVersion is the version written by Encode. Version 0 is
// the pre-ShapeID format whose status records lack status_class and
// severity.
const DocumentSchemaVersion = 2

// ErrUnsupportedSchema is returned when a document is newer than this
// build understands.
var ErrUnsupportedSchema = errors.New("store: unsupported document schema version")

// Document is the persisted model: features in declaration order with
// their reference sets and last known status.
type Document struct {
	SchemaVersion int             `json:"schema_version"`
	DocumentID    uuid.UUID       `json:"document_id"`
	Features      []FeatureRecord `json:"features"`
}

// FeatureRecord is one persisted feature.
type FeatureRecord struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Class        string                  `json:"class"`
	Dependencies []string                `json:"dependencies,omitempty"`
	Params       map[string]float64      `json:"params,omitempty"`
	Refs         *FeatureReferenceSet    `json:"refs,omitempty"`
	Status       *envelope.StatusDetails `json:"status_details,omitempty"`
}

// NewDocument returns an empty document with a fresh ID.
func NewDocument() *Document {
	return &Document{
		SchemaVersion: DocumentSchemaVersion,
		DocumentID:    uuid.New(),
		Features:      []FeatureRecord{},
	}
}

// Feature returns the record with the given id.
func (d *Document) Feature(id string) (*FeatureRecord, bool) {
	for i := range d.Features {
		if d.Features[i].ID == id {
			return &d.Features[i], true
		}
	}
	return nil, false
}

// LoadReport lists what Decode had to repair.
type LoadReport struct {
	FromVersion int
	Migrated    []string         // feature ids whose status details were back-filled
	Dropped     map[string][]any // raw index entries discarded, by feature id
}

// Changed reports whether the loaded document differs from its bytes.
func (r LoadReport) Changed() bool {
	return r.FromVersion != DocumentSchemaVersion || len(r.Migrated) > 0 || len(r.Dropped) > 0
}

// Encode writes d in its canonical form.
func Encode(d *Document) ([]byte, error) {
	if d == nil {
		return nil, errors.New("store: nil document")
	}
	out := *d
	out.SchemaVersion = DocumentSchemaVersion
	if out.Features == nil {
		out.Features = []FeatureRecord{}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode reads a document of any supported version. Index data is
// canonicalized and legacy status details are migrated; the report says
// what was changed.
func Decode(data []byte) (*Document, LoadReport, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, LoadReport{}, fmt.Errorf("decode document: %w", err)
	}
	report := LoadReport{FromVersion: d.SchemaVersion}
	if d.SchemaVersion > DocumentSchemaVersion {
		return nil, report, fmt.Errorf("%w: %d", ErrUnsupportedSchema, d.SchemaVersion)
	}
	if d.DocumentID == uuid.Nil {
		d.DocumentID = uuid.New()
	}
	if d.Features == nil {
		d.Features = []FeatureRecord{}
	}

	for i := range d.Features {
		f := &d.Features[i]
		if f.Refs != nil {
			if f.Refs.FeatureID == "" {
				f.Refs.FeatureID = f.ID
			}
			if dropped := f.Refs.Dropped(); len(dropped) > 0 {
				if report.Dropped == nil {
					report.Dropped = make(map[string][]any)
				}
				report.Dropped[f.ID] = dropped
			}
		}
		if f.Status != nil {
			migrated, changed := envelope.Migrate(*f.Status)
			if changed {
				f.Status = &migrated
				report.Migrated = append(report.Migrated, f.ID)
			}
		}
	}
	d.SchemaVersion = DocumentSchemaVersion
	return &d, report, nil
}
