package rebuild

import (
	"context"
	"fmt"
	"time"

	"github.com/chazu/toponame/pkg/classify"
	"github.com/chazu/toponame/pkg/envelope"
	"github.com/chazu/toponame/pkg/graph"
	"github.com/chazu/toponame/pkg/kernel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SolidSource supplies the solid each feature is computed against. For a
// body it builds the body; for a reference feature it returns the solid
// its references select from. An error is the kernel failure for f.
type SolidSource interface {
	Solid(ctx context.Context, f *graph.Feature) (kernel.Solid, error)
}

// Report is the result of one graph rebuild, in rebuild order.
type Report struct {
	Outcomes []Outcome
}

// Envelopes returns the envelopes of failed features in rebuild order.
func (r *Report) Envelopes() []envelope.ErrorEnvelope {
	var out []envelope.ErrorEnvelope
	for _, o := range r.Outcomes {
		if o.Envelope != nil {
			out = append(out, *o.Envelope)
		}
	}
	return out
}

// Outcome returns the outcome for id.
func (r *Report) Outcome(id graph.FeatureID) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.FeatureID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Worst returns the most severe status class in the report.
func (r *Report) Worst() classify.StatusClass {
	worst := classify.StatusOK
	for _, o := range r.Outcomes {
		if o.Status.Status > worst {
			worst = o.Status.Status
		}
	}
	return worst
}

// RebuildGraph rebuilds every feature of g in topological order. A feature
// whose dependency halted is BLOCKED and names the feature that failed
// first; after a CRITICAL outcome every remaining feature is BLOCKED.
// The error is non-nil only when the graph cannot be ordered, ctx is done,
// or an envelope cannot be built.
func (r *Rebuilder) RebuildGraph(ctx context.Context, g *graph.FeatureGraph, src SolidSource, strict bool) (*Report, error) {
	ctx, span := r.tracer.Start(ctx, "rebuild.Graph",
		trace.WithAttributes(
			attribute.Int("graph.features", g.Len()),
			attribute.Bool("policy.strict", strict),
		),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		rebuildDuration.WithLabelValues("graph").Observe(time.Since(start).Seconds())
	}()

	order, err := g.TopoOrder()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("rebuild: %w", err)
	}

	report := &Report{Outcomes: make([]Outcome, 0, len(order))}
	// rootCause maps a halted feature to the label of the feature whose
	// failure it traces back to.
	rootCause := make(map[graph.FeatureID]string)
	halted := ""

	for _, f := range order {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context canceled")
			return report, err
		}

		opts := Options{Strict: strict, Upstream: halted}
		if opts.Upstream == "" {
			for _, dep := range f.Dependencies {
				if cause, ok := rootCause[dep]; ok {
					opts.Upstream = cause
					break
				}
			}
		}

		var solid kernel.Solid
		if opts.Upstream == "" {
			solid, opts.FinalizeErr = src.Solid(ctx, f)
		}

		out, err := r.RebuildFeature(ctx, f, solid, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
		report.Outcomes = append(report.Outcomes, out)

		switch {
		case out.Status.Status == classify.StatusBlocked:
			rootCause[f.ID] = out.Status.Upstream
		case out.Status.Status.Halts():
			rootCause[f.ID] = f.Label()
			r.logger.Warn("feature halted",
				zap.String("feature", string(f.ID)),
				zap.Stringer("status", out.Status.Status),
				zap.Int("dependents", len(g.Dependents(f.ID))))
		}
		if out.Status.Status == classify.StatusCritical && halted == "" {
			halted = f.Label()
		}
	}

	worst := report.Worst()
	span.SetAttributes(attribute.String("status.worst", worst.String()))
	if worst.Halts() {
		span.SetStatus(codes.Error, worst.String())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	r.logger.Info("graph rebuilt",
		zap.Int("features", len(order)),
		zap.Int("envelopes", len(report.Envelopes())),
		zap.Stringer("worst", worst),
		zap.Bool("strict", strict),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}
