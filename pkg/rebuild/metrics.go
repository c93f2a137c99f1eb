package rebuild

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("toponame.rebuild")

var (
	// featureTotal counts rebuilt features by status class.
	featureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toponame",
		Name:      "rebuild_features_total",
		Help:      "Features rebuilt by resulting status class",
	}, []string{"status"})

	// slotTotal counts resolved slots by the strategy that produced the result.
	slotTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toponame",
		Name:      "resolve_slots_total",
		Help:      "Reference slots resolved by winning strategy",
	}, []string{"strategy"})

	// failureTotal counts classified reference failures.
	failureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toponame",
		Name:      "tnp_failures_total",
		Help:      "Classified reference failures by category and policy",
	}, []string{"category", "policy"})

	// bindTotal counts references bound on first compute.
	bindTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "toponame",
		Name:      "references_bound_total",
		Help:      "Reference slots bound to a shape on first compute",
	})

	// rebuildDuration tracks rebuild latency per scope.
	rebuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toponame",
		Name:      "rebuild_duration_seconds",
		Help:      "Rebuild duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"scope"})
)

func policyLabel(strict bool) string {
	if strict {
		return "strict"
	}
	return "legacy"
}
