// Package metrics exposes Prometheus counters for trust and transfer decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransferOutcomes counts AttemptTransfer results by outcome:
	// executed, deferred_pending, deferred_requested, rejected.
	TransferOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "transfer_attempts_total",
		Help:      "Trust-gated transfer attempts by outcome.",
	}, []string{"outcome"})

	// TransferTransitions counts transfer lifecycle changes by target state.
	TransferTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "transfer_transitions_total",
		Help:      "Transfer state transitions by resulting state.",
	}, []string{"state"})

	TrustTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "trust_transitions_total",
		Help:      "Trust relationship state transitions by resulting state.",
	}, []string{"state"})

	// ConcurrentUpdateConflicts counts optimistic-concurrency losses.
	ConcurrentUpdateConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "update_conflicts_total",
		Help:      "Updates rejected because another writer changed the record first.",
	})
)
