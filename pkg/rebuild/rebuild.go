// Package rebuild recomputes features in dependency order, resolving their
// shape references against the current solid and turning every failure
// into an envelope.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/toponame/pkg/classify"
	"github.com/chazu/toponame/pkg/envelope"
	"github.com/chazu/toponame/pkg/graph"
	"github.com/chazu/toponame/pkg/kernel"
	"github.com/chazu/toponame/pkg/resolve"
	"github.com/chazu/toponame/pkg/topo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options control one feature rebuild.
type Options struct {
	// Strict refuses geometric rescue of references.
	Strict bool

	// Upstream names the failed feature this one depends on. When set the
	// feature is not computed and its outcome is BLOCKED.
	Upstream string

	// FinalizeErr is the kernel error raised while computing the feature.
	// Errors wrapping kernel.ErrUnavailable become dependency_unavailable;
	// anything else is a finalize failure.
	FinalizeErr error
}

// Outcome is the result of rebuilding one feature.
type Outcome struct {
	FeatureID   graph.FeatureID
	Resolutions []resolve.SlotResolution
	Failures    []classify.TnpFailure
	Status      classify.Outcome
	Bound       int // slots bound by this rebuild

	// Envelope is nil when the feature rebuilt cleanly.
	Envelope *envelope.ErrorEnvelope
}

// Rebuilder rebuilds features with a shared resolver.
type Rebuilder struct {
	resolver *resolve.Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures a Rebuilder.
type Option func(*Rebuilder)

// WithLogger sets the rebuild logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rebuilder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer overrides the package tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Rebuilder) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New returns a Rebuilder. A nil resolver uses default tolerances.
func New(res *resolve.Resolver, opts ...Option) *Rebuilder {
	r := &Rebuilder{resolver: res, logger: zap.NewNop(), tracer: tracer}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = resolve.New(resolve.DefaultTolerances(), resolve.WithLogger(r.logger))
	}
	return r
}

// RebuildFeature resolves f's references against solid and classifies the
// result under opts. Unbound slots that resolve are bound to the shape
// they resolved to, so later rebuilds carry shape evidence. The error is
// reserved for failures to build an envelope; feature failures are
// reported through the Outcome.
func (r *Rebuilder) RebuildFeature(ctx context.Context, f *graph.Feature, solid kernel.Solid, opts Options) (Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "rebuild.Feature",
		trace.WithAttributes(
			attribute.String("feature.id", string(f.ID)),
			attribute.String("feature.class", f.Class.String()),
			attribute.Bool("policy.strict", opts.Strict),
		),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		rebuildDuration.WithLabelValues("feature").Observe(time.Since(start).Seconds())
	}()

	out := Outcome{FeatureID: f.ID}
	var slots []topo.Slot
	if f.Refs != nil {
		slots = f.Refs.Slots()
	}

	switch {
	case opts.Upstream != "":
		out.Status = classify.Blocked(opts.Upstream)

	case errors.Is(opts.FinalizeErr, kernel.ErrUnavailable):
		out.Status = classify.Unavailable(opts.FinalizeErr)

	case f.Refs != nil && solid == nil:
		out.Status = classify.Unavailable(fmt.Errorf("no solid to resolve %s against: %w", f.ID, kernel.ErrUnavailable))

	default:
		if f.Refs != nil {
			r.resolveSlots(ctx, f, slots, solid, opts.Strict, &out)
		}
		if !out.Status.Status.Halts() && opts.FinalizeErr != nil {
			out.Status = classify.FinalizeFailed(opts.FinalizeErr)
		}
	}

	featureTotal.WithLabelValues(out.Status.Status.String()).Inc()
	span.SetAttributes(attribute.String("status", out.Status.Status.String()))

	if !out.Status.Failed() {
		span.SetStatus(codes.Ok, "")
		return out, nil
	}

	meta := envelope.FeatureMeta{ID: string(f.ID), Name: f.Name, Class: f.Class.String()}
	env, err := envelope.Build(meta, envelope.RefsOf(slots), out.Status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, fmt.Errorf("rebuild %s: %w", f.ID, err)
	}
	out.Envelope = &env
	span.SetStatus(codes.Error, string(env.Code))

	r.logger.Info("feature failed",
		zap.String("feature", string(f.ID)),
		zap.String("code", string(env.Code)),
		zap.Stringer("status", env.StatusClass),
		zap.String("upstream", opts.Upstream))
	return out, nil
}

// resolveSlots runs the resolver over slots, classifies candidates and
// binds newly resolved slots when the feature does not halt.
func (r *Rebuilder) resolveSlots(ctx context.Context, f *graph.Feature, slots []topo.Slot,
	solid kernel.Solid, strict bool, out *Outcome) {

	_, span := r.tracer.Start(ctx, "rebuild.resolveSlots",
		trace.WithAttributes(attribute.Int("slots", len(slots))))
	defer span.End()

	hist, hasHistory := kernel.HistoryOf(solid)
	span.SetAttributes(attribute.Bool("kernel.history", hasHistory))

	out.Resolutions = r.resolver.ResolveSlots(slots, solid, hist)
	for _, res := range out.Resolutions {
		slotTotal.WithLabelValues(res.Result.Strategy.String()).Inc()
	}
	for _, c := range resolve.Candidates(out.Resolutions) {
		fail := classify.Classify(c, strict)
		if fail.Category == classify.CategoryNone {
			continue
		}
		failureTotal.WithLabelValues(fail.Category.String(), policyLabel(strict)).Inc()
		out.Failures = append(out.Failures, fail)
	}
	out.Status = classify.FromFailures(out.Failures)

	if out.Status.Status.Halts() {
		return
	}
	for _, res := range out.Resolutions {
		if res.Slot.HasRef() || !res.Result.Resolved() {
			continue
		}
		ref, ok := resolve.Capture(solid, res.Slot.Type, res.Result.Index)
		if ok && f.Refs.BindSlot(res.Position, ref) {
			out.Bound++
		}
	}
	if out.Bound > 0 {
		bindTotal.Add(float64(out.Bound))
		r.logger.Debug("bound references",
			zap.String("feature", string(f.ID)),
			zap.Int("count", out.Bound))
	}
}
