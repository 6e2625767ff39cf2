package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := extractionResultsTotal
	Init()
	require.Same(t, first, extractionResultsTotal)
	require.NotNil(t, rateLimitWaitSeconds)
	require.NotNil(t, httpRequestDurationSeconds)
}

func TestObserveResult(t *testing.T) {
	before := testutil.ToFloat64(counterFor(t, "headless", "ok"))
	ObserveResult("headless", "ok")
	ObserveResult("headless", "ok")
	require.InDelta(t, before+2, testutil.ToFloat64(counterFor(t, "headless", "ok")), 0.0001)
}

func TestObserveRateLimit(t *testing.T) {
	before := testutil.ToFloat64(rateLimitTimeoutsOf(t, "metrics-test.example"))
	ObserveRateLimitTimeout("metrics-test.example")
	ObserveRateLimitWait("metrics-test.example", 250*time.Millisecond)
	require.InDelta(t, before+1, testutil.ToFloat64(rateLimitTimeoutsOf(t, "metrics-test.example")), 0.0001)
	require.Positive(t, testutil.CollectAndCount(rateLimitWaitSeconds))

	SetRateLimitTrackedKeys(7)
	require.InDelta(t, 7, testutil.ToFloat64(rateLimitTrackedKeys), 0.0001)
}

func TestObserveFetchBytesIgnoresEmpty(t *testing.T) {
	Init()
	before := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("direct"))
	ObserveFetchBytes("direct", 0)
	ObserveFetchBytes("direct", -3)
	ObserveFetchBytes("direct", 512)
	require.InDelta(t, before+512, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("direct")), 0.0001)
}

func counterFor(t *testing.T, tier, outcome string) prometheus.Counter {
	t.Helper()
	Init()
	return extractionResultsTotal.WithLabelValues(tier, outcome)
}

func rateLimitTimeoutsOf(t *testing.T, domain string) prometheus.Counter {
	t.Helper()
	Init()
	return rateLimitTimeoutsTotal.WithLabelValues(domain)
}
