package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/toponame/pkg/classify"
	"github.com/chazu/toponame/pkg/config"
	"github.com/chazu/toponame/pkg/engine"
	"github.com/chazu/toponame/pkg/envelope"
	"github.com/chazu/toponame/pkg/graph"
	"github.com/chazu/toponame/pkg/kernel"
	_ "github.com/chazu/toponame/pkg/kernel/sdfx" // registers the sdfx backend
	"github.com/chazu/toponame/pkg/rebuild"
	"github.com/chazu/toponame/pkg/resolve"
	"github.com/chazu/toponame/pkg/store"
	"go.uber.org/zap"
)

// App wires the engine, kernel, rebuilder and repository together. Each
// command builds one App from the loaded configuration.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	engine    *engine.Engine
	kernel    kernel.Kernel
	rebuilder *rebuild.Rebuilder
	repo      *store.Repository // nil when persistence is off
}

// Issue is an evaluation or validation message.
type Issue struct {
	Line      int    `json:"line,omitempty"`
	FeatureID string `json:"feature_id,omitempty"`
	Message   string `json:"message"`
}

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Graph     *graph.FeatureGraph      `json:"-"`
	Errors    []Issue                  `json:"errors"`
	Warnings  []Issue                  `json:"warnings"`
	Envelopes []envelope.ErrorEnvelope `json:"envelopes"`
	Worst     classify.StatusClass     `json:"worst"`
	Cycles    int                      `json:"cycles"`
	Adopted   int                      `json:"adopted"`
}

// Failed reports whether the run should exit non-zero.
func (r *CheckResult) Failed() bool {
	return len(r.Errors) > 0 || r.Worst.Halts()
}

// ErrUnstable is returned when rebuild cycles disagree.
var ErrUnstable = errors.New("rebuild cycles produced different envelopes")

// NewApp builds an App. withRepo opens the badger repository from cfg.
func NewApp(cfg *config.Config, logger *zap.Logger, withRepo bool) (*App, error) {
	k, err := kernel.Open(cfg.Kernel.Backend)
	if err != nil {
		return nil, err
	}
	res := resolve.New(cfg.Tolerances, resolve.WithLogger(logger.Named("resolve")))
	a := &App{
		cfg:       cfg,
		logger:    logger,
		engine:    engine.NewEngine(engine.WithLogger(logger.Named("engine"))),
		kernel:    k,
		rebuilder: rebuild.New(res, rebuild.WithLogger(logger.Named("rebuild"))),
	}
	if withRepo {
		a.repo, err = store.Open(store.Config{
			Path:       cfg.Store.Path,
			InMemory:   cfg.Store.InMemory,
			SyncWrites: cfg.Store.SyncWrites,
			Logger:     logger.Named("store"),
		})
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Close releases the repository.
func (a *App) Close() error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Close()
}

// LoadGraph reads a feature script, or a saved JSON document when path
// ends in .json.
func (a *App) LoadGraph(ctx context.Context, path string) (*graph.FeatureGraph, *CheckResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	result := &CheckResult{Errors: []Issue{}, Warnings: []Issue{}, Envelopes: []envelope.ErrorEnvelope{}}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		doc, rep, err := store.Decode(data)
		if err != nil {
			return nil, nil, err
		}
		for id, dropped := range rep.Dropped {
			for _, d := range dropped {
				result.Warnings = append(result.Warnings, Issue{FeatureID: id, Message: fmt.Sprintf("dropped invalid reference %v", d)})
			}
		}
		g, err := graph.FromDocument(doc)
		if err != nil {
			return nil, nil, err
		}
		return g, result, nil
	}

	res, err := a.engine.EvaluateContext(ctx, string(data))
	if err != nil {
		return nil, nil, err
	}
	for _, e := range res.Errors {
		result.Errors = append(result.Errors, Issue{Line: e.Line, Message: e.Message})
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, Issue{Line: w.Line, FeatureID: string(w.FeatureID), Message: w.Message})
	}
	return res.Graph, result, nil
}

// Check loads path, validates it and rebuilds it cycles times under the
// given policy. Every cycle must produce the same envelopes; bindings made
// by the first cycle are persisted when a repository is open.
func (a *App) Check(ctx context.Context, path string, strict bool, cycles int) (*CheckResult, error) {
	g, result, err := a.LoadGraph(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return result, nil
	}
	result.Graph = g

	v := graph.ValidateAll(g)
	for _, e := range v.Errors {
		result.Errors = append(result.Errors, Issue{FeatureID: string(e.FeatureID), Message: e.Message})
	}
	for _, w := range v.Warnings {
		result.Warnings = append(result.Warnings, Issue{FeatureID: string(w.FeatureID), Message: w.Message})
	}
	if !v.OK() {
		return result, nil
	}

	var prev *store.Document
	if a.repo != nil {
		prev, err = a.repo.LoadDocument()
		switch {
		case errors.Is(err, store.ErrNotFound):
			prev = nil
		case err != nil:
			return nil, err
		default:
			result.Adopted = g.AdoptBindings(prev)
		}
	}

	if cycles < 1 {
		cycles = 1
	}
	src := rebuild.NewKernelSource(a.kernel, g)
	var first []byte
	var report *rebuild.Report
	for i := 0; i < cycles; i++ {
		report, err = a.rebuilder.RebuildGraph(ctx, g, src, strict)
		if err != nil {
			return nil, err
		}
		enc, err := encodeEnvelopes(report.Envelopes())
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first = enc
		} else if !bytes.Equal(first, enc) {
			return nil, fmt.Errorf("cycle %d: %w", i+1, ErrUnstable)
		}
		result.Cycles++
	}
	if envs := report.Envelopes(); envs != nil {
		result.Envelopes = envs
	}
	result.Worst = report.Worst()

	if a.repo != nil {
		if err := a.save(g, prev, report); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// save persists g, keeping the document ID of the previous save, then
// records the status of every feature that produced an envelope.
func (a *App) save(g *graph.FeatureGraph, prev *store.Document, report *rebuild.Report) error {
	doc := graph.ToDocument(g)
	if prev != nil {
		doc.DocumentID = prev.DocumentID
	}
	if err := a.repo.SaveDocument(doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	recorded := 0
	for _, o := range report.Outcomes {
		if o.Envelope == nil {
			continue
		}
		if err := a.repo.RecordStatus(string(o.FeatureID), o.Envelope.Details()); err != nil {
			return fmt.Errorf("record status of %s: %w", o.FeatureID, err)
		}
		recorded++
	}
	a.logger.Debug("document saved",
		zap.String("document", doc.DocumentID.String()),
		zap.Int("features", len(doc.Features)),
		zap.Int("statuses", recorded))
	return nil
}

func encodeEnvelopes(envs []envelope.ErrorEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range envs {
		b, err := envelope.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Migrate decodes a saved document, which canonicalizes its references and
// back-fills legacy status details, and re-encodes it.
func Migrate(data []byte) ([]byte, store.LoadReport, error) {
	doc, rep, err := store.Decode(data)
	if err != nil {
		return nil, rep, err
	}
	out, err := store.Encode(doc)
	return out, rep, err
}
