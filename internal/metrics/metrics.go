// Package metrics registers the Prometheus instruments exposed on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecalculationsTotal counts settlement recalculations by outcome
	// ("success" or "error").
	RecalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabmates",
		Name:      "recalculations_total",
		Help:      "Settlement recalculations by outcome.",
	}, []string{"result"})

	// RecalculationDuration observes how long a full recalculation takes
	// (balance aggregation, netting, and reconciliation).
	RecalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tabmates",
		Name:      "recalculation_duration_seconds",
		Help:      "Duration of settlement recalculations.",
		Buckets:   prometheus.DefBuckets,
	})

	// PendingRecalculations tracks armed debounce timers.
	PendingRecalculations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tabmates",
		Name:      "pending_recalculations",
		Help:      "Groups with an armed recalculation timer.",
	})

	// SettlementsReplaced counts pending settlement rows written by
	// reconciliation.
	SettlementsReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabmates",
		Name:      "settlements_replaced_total",
		Help:      "Pending settlement rows written by recalculations.",
	})
)
