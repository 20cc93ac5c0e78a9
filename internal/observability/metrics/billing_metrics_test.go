package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBillingMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newBillingMetrics(registry, Config{
		ServiceName: "rabill",
		Environment: "test",
	})

	metrics.IncResolverRequest(ResolverOutcomeSuccess)
	metrics.IncResolverRequest(ResolverOutcomeCacheHit)
	metrics.ObserveResolverLatency(25 * time.Millisecond)
	metrics.IncFallbackComputation()
	metrics.IncRecomputeScheduled()
	metrics.IncRecomputeScheduled()
	metrics.IncRecomputeSuperseded()
	metrics.IncAllocationRejected(AllocationRejectReasonExceedsRemaining)
	metrics.IncBudgetClassification("caution")

	if got := testutil.ToFloat64(metrics.resolverRequests.WithLabelValues(ResolverOutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 success resolution, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.resolverRequests.WithLabelValues(ResolverOutcomeCacheHit)); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.fallbackComputations); got != 1 {
		t.Fatalf("expected 1 fallback computation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.recomputeScheduled); got != 2 {
		t.Fatalf("expected 2 scheduled recomputes, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.recomputeSuperseded); got != 1 {
		t.Fatalf("expected 1 superseded recompute, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.allocationRejected.WithLabelValues(AllocationRejectReasonExceedsRemaining)); got != 1 {
		t.Fatalf("expected 1 rejected allocation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.budgetClassifications.WithLabelValues("caution")); got != 1 {
		t.Fatalf("expected 1 caution classification, got %v", got)
	}
}

func TestBillingSingletonReset(t *testing.T) {
	ResetBillingMetricsForTest()
	t.Cleanup(ResetBillingMetricsForTest)

	first := Billing()
	if first == nil {
		t.Fatal("expected billing metrics instance")
	}
	if Billing() != first {
		t.Fatal("expected singleton to be reused")
	}

	ResetBillingMetricsForTest()
	second := Billing()
	if second == nil || second == first {
		t.Fatal("expected a fresh instance after reset")
	}

	// re-registration against the default registerer must tolerate the
	// collectors already being present
	second.IncFallbackComputation()
}
