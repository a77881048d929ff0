// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agriclaim",
		Name:      "claims_submitted_total",
		Help:      "Claims submitted by farmers.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agriclaim",
		Name:      "claim_transitions_total",
		Help:      "Successful status transitions by acting role and destination status.",
	}, []string{"role", "status"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agriclaim",
		Name:      "claim_conflicts_total",
		Help:      "Mutations rejected because the claim had moved on.",
	}, []string{"role"})

	FallbackWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agriclaim",
		Name:      "fallback_writes_total",
		Help:      "Writes served by the local cache while the primary store was unreachable.",
	}, []string{"kind"})

	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agriclaim",
		Name:      "reconcile_mutations_total",
		Help:      "Queued mutations replayed against the primary store, by outcome.",
	}, []string{"outcome"})

	OpenFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "agriclaim",
		Name:      "open_feeds",
		Help:      "Live role feeds currently subscribed.",
	})

	DegradedFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "agriclaim",
		Name:      "degraded_feeds",
		Help:      "Open feeds serving cached snapshots.",
	})

	SMSSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agriclaim",
		Name:      "sms_notifications_total",
		Help:      "Farmer SMS notifications by result.",
	}, []string{"result"})
)
