// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nonpayment",
		Name:      "submissions_total",
		Help:      "Submissions by outcome (accepted, validation_failed, unauthorized, dispatch_failed, error).",
	}, []string{"outcome"})

	sinkCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nonpayment",
		Name:      "sink_calls_total",
		Help:      "Downstream sink calls by sink and result.",
	}, []string{"sink", "result"})

	sinkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nonpayment",
		Name:      "sink_call_duration_seconds",
		Help:      "Downstream sink call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sink"})

	taxonomyFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nonpayment",
		Name:      "taxonomy_fetch_failures_total",
		Help:      "Failed reason taxonomy reads by level.",
	}, []string{"level"})

	reasonCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nonpayment",
		Name:      "reason_cache_lookups_total",
		Help:      "Reason cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

// Submission counts one submission outcome.
func Submission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// SinkCall records one downstream call.
func SinkCall(sink string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sinkCallsTotal.WithLabelValues(sink, result).Inc()
	sinkDuration.WithLabelValues(sink).Observe(took.Seconds())
}

// TaxonomyFetchFailure counts a failed reason read.
func TaxonomyFetchFailure(level string) {
	taxonomyFetchFailures.WithLabelValues(level).Inc()
}

// ReasonCacheLookup counts a cache lookup result.
func ReasonCacheLookup(result string) {
	reasonCacheLookups.WithLabelValues(result).Inc()
}
