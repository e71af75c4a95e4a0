package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskTransitions tracks task status transitions by resulting status
	TaskTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletgate_task_transitions_total",
			Help: "Total number of task status transitions",
		},
		[]string{"status"},
	)

	// TasksReaped tracks tasks expired by the reap phase
	TasksReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletgate_tasks_reaped_total",
			Help: "Total number of tasks expired by the reap phase",
		},
	)

	// CycleSkipped tracks cycle phases skipped because the previous run was
	// still in flight
	CycleSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletgate_cycle_skipped_total",
			Help: "Total number of skipped scheduler phase invocations",
		},
		[]string{"phase"},
	)

	// CycleDuration tracks how long each scheduler phase takes
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletgate_cycle_duration_seconds",
			Help:    "Scheduler phase duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// ExplorerCalls tracks explorer GraphQL calls by query shape and outcome
	ExplorerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletgate_explorer_calls_total",
			Help: "Total number of explorer GraphQL calls",
		},
		[]string{"query", "outcome"},
	)

	// ExplorerFallbacks tracks pages served through the fallback query shape
	ExplorerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletgate_explorer_fallbacks_total",
			Help: "Total number of pages fetched via the fallback query",
		},
	)

	// ExplorerCallLatency tracks explorer call latency
	ExplorerCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletgate_explorer_call_latency_seconds",
			Help:    "Explorer GraphQL call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// TasksPruned tracks terminal tasks removed by retention pruning
	TasksPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletgate_tasks_pruned_total",
			Help: "Total number of terminal tasks pruned",
		},
	)

	// DBConnectionPoolUsage tracks database pool utilisation percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletgate_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
