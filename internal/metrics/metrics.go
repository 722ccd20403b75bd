package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "revindexer"

// Label outcomes.
const (
	OutcomeLabeled               = "labeled"
	OutcomeInsufficientHistory   = "insufficient_history"
	OutcomeStoreUnavailable      = "store_unavailable"
	OutcomeClassifierUnavailable = "classifier_unavailable"
)

var (
	// Labeler
	LabelQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "labeler",
		Name:      "queries_total",
		Help:      "Total revision label queries by outcome",
	}, []string{"outcome"})

	LabelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "labeler",
		Name:      "query_duration_seconds",
		Help:      "End-to-end duration of one revision label query",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	RevisionFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "labeler",
		Name:      "flags_total",
		Help:      "Labeled revisions by flag name and value",
	}, []string{"flag", "value"})

	// Window builder
	WindowBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "window",
		Name:      "build_duration_seconds",
		Help:      "Revision window build duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	WindowSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "window",
		Name:      "revisions",
		Help:      "Number of revisions in a built window",
		Buckets:   prometheus.LinearBuckets(1, 4, 10),
	})

	// Revert scanner
	RevertEventsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scanner",
		Name:      "revert_events_total",
		Help:      "Total revert events detected across scanned windows",
	})

	// Classifier
	ClassifierCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "calls_total",
		Help:      "Total classifier calls by model and status",
	}, []string{"model", "status"})

	ClassifierLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "call_duration_seconds",
		Help:      "Classifier HTTP call duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"model"})

	ClassifierRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "rate_limit_waits_total",
		Help:      "Total times classifier calls waited for the rate limiter",
	}, []string{"model"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	// Score cache
	ScoreCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "score_cache",
		Name:      "lookups_total",
		Help:      "Score cache lookups by tier and result",
	}, []string{"tier", "result"})

	// Store
	StoreRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "retries_total",
		Help:      "Revision store calls retried after a transient failure",
	}, []string{"op"})

	// Batch pipeline
	PipelineInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "in_flight",
		Help:      "Revision queries currently being processed",
	})

	PipelineReorderDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "reorder_buffer_depth",
		Help:      "Completed records held back to restore input order",
	})

	PipelineRecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "records_written_total",
		Help:      "Status records written to the sink",
	})

	// Quality periods
	QualityPeriodsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quality",
		Name:      "periods_total",
		Help:      "Article periods processed by outcome",
	}, []string{"outcome"})

	// DB pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "open_connections",
		Help:      "Number of established connections",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "in_use",
		Help:      "Number of connections currently in use",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "idle",
		Help:      "Number of idle connections",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "wait_count",
		Help:      "Total number of connections waited for",
	})

	DBPoolWaitDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db_pool",
		Name:      "wait_duration_seconds",
		Help:      "Total time blocked waiting for a new connection",
	})
)

var (
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts delivered by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the cooldown window",
	}, []string{"channel", "type"})
)

// ObserveDBStats copies a connection pool snapshot into the db_pool gauges.
func ObserveDBStats(stats sql.DBStats) {
	DBPoolOpen.Set(float64(stats.OpenConnections))
	DBPoolInUse.Set(float64(stats.InUse))
	DBPoolIdle.Set(float64(stats.Idle))
	DBPoolWaitCount.Set(float64(stats.WaitCount))
	DBPoolWaitDurationSeconds.Set(stats.WaitDuration.Seconds())
}
