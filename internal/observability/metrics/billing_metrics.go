package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResolverOutcomeSuccess  = "success"
	ResolverOutcomeFailure  = "failure"
	ResolverOutcomeCacheHit = "cache_hit"
)

const (
	AllocationRejectReasonInvalidPercentage = "invalid_percentage"
	AllocationRejectReasonDuplicate         = "duplicate_milestone"
	AllocationRejectReasonExceedsRemaining  = "exceeds_remaining"
)

// Config carries const labels stamped onto every series.
type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics captures the health signals of the bill computation core.
type BillingMetrics struct {
	resolverRequests *prometheus.CounterVec
	resolverLatency  prometheus.Observer

	fallbackComputations prometheus.Counter

	recomputeScheduled  prometheus.Counter
	recomputeApplied    prometheus.Counter
	recomputeSuperseded prometheus.Counter

	allocationRejected    *prometheus.CounterVec
	budgetClassifications *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics registry using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the billing metrics singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "rabill"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	resolverRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rabill_statutory_resolver_requests_total",
		Help:        "Rule service resolution attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	resolverLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "rabill_statutory_resolver_duration_seconds",
		Help:        "Rule service resolution latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	})
	fallbackComputations := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rabill_bill_fallback_computations_total",
		Help:        "Bill breakdowns produced by the local fallback formula.",
		ConstLabels: constLabels,
	})
	recomputeScheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rabill_recompute_scheduled_total",
		Help:        "Debounced recomputations scheduled.",
		ConstLabels: constLabels,
	})
	recomputeApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rabill_recompute_applied_total",
		Help:        "Debounced recomputations whose result was applied.",
		ConstLabels: constLabels,
	})
	recomputeSuperseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rabill_recompute_superseded_total",
		Help:        "Recomputations dropped because a newer edit superseded them.",
		ConstLabels: constLabels,
	})
	allocationRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rabill_allocation_rejected_total",
		Help:        "Milestone allocation mutations rejected by validation.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	budgetClassifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rabill_budget_classifications_total",
		Help:        "Budget guard classifications by status.",
		ConstLabels: constLabels,
	}, []string{"status"})

	for _, collector := range []prometheus.Collector{
		resolverRequests,
		resolverLatency,
		fallbackComputations,
		recomputeScheduled,
		recomputeApplied,
		recomputeSuperseded,
		allocationRejected,
		budgetClassifications,
	} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return &BillingMetrics{
		resolverRequests:      resolverRequests,
		resolverLatency:       resolverLatency,
		fallbackComputations:  fallbackComputations,
		recomputeScheduled:    recomputeScheduled,
		recomputeApplied:      recomputeApplied,
		recomputeSuperseded:   recomputeSuperseded,
		allocationRejected:    allocationRejected,
		budgetClassifications: budgetClassifications,
	}
}

func (m *BillingMetrics) IncResolverRequest(outcome string) {
	if m == nil {
		return
	}
	m.resolverRequests.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) ObserveResolverLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.resolverLatency.Observe(d.Seconds())
}

func (m *BillingMetrics) IncFallbackComputation() {
	if m == nil {
		return
	}
	m.fallbackComputations.Inc()
}

func (m *BillingMetrics) IncRecomputeScheduled() {
	if m == nil {
		return
	}
	m.recomputeScheduled.Inc()
}

func (m *BillingMetrics) IncRecomputeApplied() {
	if m == nil {
		return
	}
	m.recomputeApplied.Inc()
}

func (m *BillingMetrics) IncRecomputeSuperseded() {
	if m == nil {
		return
	}
	m.recomputeSuperseded.Inc()
}

func (m *BillingMetrics) IncAllocationRejected(reason string) {
	if m == nil {
		return
	}
	m.allocationRejected.WithLabelValues(reason).Inc()
}

func (m *BillingMetrics) IncBudgetClassification(status string) {
	if m == nil {
		return
	}
	m.budgetClassifications.WithLabelValues(status).Inc()
}
