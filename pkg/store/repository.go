package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/chazu/toponame/pkg/envelope"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a feature or document is not stored.
var ErrNotFound = errors.New("store: not found")

const (
	featurePrefix = "feature/"
	metaKey       = "meta/document"
)

// Config configures a Repository.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and one-shot runs.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	Logger *zap.Logger
}

// InMemoryConfig returns a configuration for throwaway repositories.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Repository stores feature records in an embedded badger database,
// keyed by feature id. It is safe for concurrent use.
type Repository struct {
	db     *badger.DB
	logger *zap.Logger
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// Open opens (creating if needed) a repository.
func Open(cfg Config) (*Repository, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent repository")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create repository directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Repository{db: db, logger: logger}, nil
}

// Close releases the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func featureKey(id string) []byte {
	return []byte(featurePrefix + id)
}

// PutFeature stores rec, replacing any previous record with the same id.
func (r *Repository) PutFeature(rec FeatureRecord) error {
	if rec.ID == "" {
		return errors.New("store: feature id is required")
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode feature %s: %w", rec.ID, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(featureKey(rec.ID), val)
	})
}

// GetFeature loads one record. Index data is canonicalized on the way out
// exactly as in Decode.
func (r *Repository) GetFeature(id string) (FeatureRecord, error) {
	var rec FeatureRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(featureKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("feature %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// DeleteFeature removes a record. Deleting a missing feature is not an
// error.
func (r *Repository) DeleteFeature(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(featureKey(id))
	})
}

// ListFeatures returns every stored feature id in sorted order.
func (r *Repository) ListFeatures() ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(featurePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(featurePrefix):]))
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

// RecordStatus replaces the stored status of a feature.
func (r *Repository) RecordStatus(id string, details envelope.StatusDetails) error {
	rec, err := r.GetFeature(id)
	if err != nil {
		return err
	}
	rec.Status = &details
	return r.PutFeature(rec)
}

// documentMeta records declaration order, which badger's key order loses.
type documentMeta struct {
	SchemaVersion int       `json:"schema_version"`
	DocumentID    uuid.UUID `json:"document_id"`
	Order         []string  `json:"order"`
}

// SaveDocument replaces the repository contents with d in one transaction.
func (r *Repository) SaveDocument(d *Document) error {
	if d == nil {
		return errors.New("store: nil document")
	}
	meta := documentMeta{
		SchemaVersion: DocumentSchemaVersion,
		DocumentID:    d.DocumentID,
		Order:         make([]string, 0, len(d.Features)),
	}
	existing, err := r.ListFeatures()
	if err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		for _, id := range existing {
			if err := txn.Delete(featureKey(id)); err != nil {
				return err
			}
		}
		for _, rec := range d.Features {
			val, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode feature %s: %w", rec.ID, err)
			}
			if err := txn.Set(featureKey(rec.ID), val); err != nil {
				return err
			}
			meta.Order = append(meta.Order, rec.ID)
		}
		val, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return txn.Set([]byte(metaKey), val)
	})
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.DocumentID, err)
	}
	r.logger.Debug("document saved",
		zap.Stringer("document_id", d.DocumentID),
		zap.Int("features", len(d.Features)))
	return nil
}

// LoadDocument reassembles the stored document in declaration order.
// Features stored without document metadata follow in id order.
func (r *Repository) LoadDocument() (*Document, error) {
	var meta documentMeta
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("document: %w", ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return nil, err
	}

	ids, err := r.ListFeatures()
	if err != nil {
		return nil, err
	}
	ordered := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range meta.Order {
		seen[id] = true
		ordered = append(ordered, id)
	}
	for _, id := range ids {
		if !seen[id] {
			ordered = append(ordered, id)
		}
	}

	d := &Document{
		SchemaVersion: DocumentSchemaVersion,
		DocumentID:    meta.DocumentID,
		Features:      make([]FeatureRecord, 0, len(ordered)),
	}
	for _, id := range ordered {
		rec, err := r.GetFeature(id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Status != nil {
			migrated, _ := envelope.Migrate(*rec.Status)
			rec.Status = &migrated
		}
		d.Features = append(d.Features, rec)
	}
	return d, nil
}
