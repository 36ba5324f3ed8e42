// Package metrics exposes prometheus counters and gauges for placements,
// preemptions, settlements, and node health transitions.
//
// Grounded on the teacher's pkg/metrics package (deleted from the
// workspace after being read for idiom): a single Namespace/Subsystem
// pair, metrics registered at package init via promauto, label vectors
// keyed by reason/outcome rather than by free-form strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "clawbernetes"
	subsystem = "gateway"
)

var (
	// WorkloadsSubmittedTotal counts every Submit call, labeled by
	// whether admission accepted or rejected it.
	WorkloadsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workloads_submitted_total",
		Help:      "Total workload submissions by admission outcome.",
	}, []string{"outcome"})

	// WorkloadStateTransitionsTotal counts state machine transitions.
	WorkloadStateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workload_state_transitions_total",
		Help:      "Total workload state transitions by from/to state.",
	}, []string{"from", "to"})

	// SchedulerPlacementsTotal counts scheduler tick placement attempts.
	SchedulerPlacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scheduler_placements_total",
		Help:      "Total placement attempts by outcome (placed, no_capacity, placed_after_preemption).",
	}, []string{"outcome"})

	// SchedulerTickDurationSeconds observes a full reconciliation tick.
	SchedulerTickDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scheduler_tick_duration_seconds",
		Help:      "Duration of a full scheduler reconciliation tick.",
		Buckets:   prometheus.DefBuckets,
	})

	// PreemptionVictimsTotal counts victims evicted, labeled by strategy.
	PreemptionVictimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "preemption_victims_total",
		Help:      "Total workloads evicted by preemption, by strategy.",
	}, []string{"strategy"})

	// PreemptionEvictionFailuresTotal counts per-victim eviction failures.
	PreemptionEvictionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "preemption_eviction_failures_total",
		Help:      "Total per-victim eviction failures, aggregated but not propagated.",
	})

	// SettlementsTotal counts marketplace settlements.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "settlements_total",
		Help:      "Total marketplace settlements by outcome.",
	}, []string{"outcome"})

	// SettlementAmountPaidTotal sums tokens paid out across settlements.
	SettlementAmountPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "settlement_amount_paid_total",
		Help:      "Total tokens paid out across all settlements.",
	})

	// NodesByHealth is a gauge vector reporting the current node count per
	// derived health class, refreshed on each registry Summary() call.
	NodesByHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "nodes_by_health",
		Help:      "Current node count by derived health class.",
	}, []string{"health"})

	// SessionMessagesTotal counts inbound protocol messages by tag.
	SessionMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_messages_total",
		Help:      "Total inbound session messages by message tag.",
	}, []string{"tag"})

	// SessionParseFailuresTotal counts frames that failed to decode.
	SessionParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_parse_failures_total",
		Help:      "Total inbound frames that failed to parse.",
	})
)
