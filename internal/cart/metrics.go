package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcomes.
const (
	outcomeSynced     = "synced"
	outcomeLocal      = "local"
	outcomeRolledBack = "rolled_back"
	outcomeFailed     = "failed"
	outcomeConflict   = "conflict"
	outcomeInvalid    = "invalid"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_cart_sync_duration_seconds",
			Help:    "Time spent fetching the server cart",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)
