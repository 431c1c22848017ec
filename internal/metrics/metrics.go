package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline counters. Registered on the default registerer; the bot serves
// them on the configured metrics address.
var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automod",
		Name:      "events_total",
		Help:      "Inbound events seen by the engine, by type.",
	}, []string{"type"})

	ExemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "automod",
		Name:      "exemptions_total",
		Help:      "Events short-circuited by whitelist or privilege.",
	})

	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automod",
		Name:      "violations_total",
		Help:      "Content violations detected, by kind.",
	}, []string{"kind"})

	RaidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automod",
		Name:      "raids_total",
		Help:      "Raid breaches detected, by configured action.",
	}, []string{"action"})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "automod",
		Name:      "actions_total",
		Help:      "Remediation actions executed, by action and outcome.",
	}, []string{"action", "outcome"})

	EvalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "automod",
		Name:      "evaluation_duration_seconds",
		Help:      "Time from event arrival to decision, per track.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"track"})

	TrackedKeys = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "automod",
		Name:      "tracked_keys",
		Help:      "Live sliding-window keys, by family.",
	}, []string{"family"})
)

// ObserveEval records one evaluation latency sample.
func ObserveEval(track string, since time.Time) {
	EvalDuration.WithLabelValues(track).Observe(time.Since(since).Seconds())
}

// Serve exposes /metrics on addr. Blocks; run in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
