// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. It satisfies
// the counter interfaces the indexer and mirror accept, so one instance
// is shared across the whole process.
type Metrics struct {
	// Indexer metrics
	EventsIndexed   *prometheus.CounterVec
	IndexerLagGauge prometheus.Gauge
	IndexerErrors   prometheus.Counter

	// Mirror metrics
	PoolsMirrored prometheus.Counter
	BetsMirrored  prometheus.Counter
	MirrorDrifts  prometheus.Counter

	// Oracle metrics
	OutcomesSubmitted *prometheus.CounterVec
	PoolsSettled      *prometheus.CounterVec

	// Reputation metrics
	ReputationSynced  prometheus.Counter
	ReputationDecayed prometheus.Counter

	// Transaction metrics
	TxSent   *prometheus.CounterVec
	TxFailed *prometheus.CounterVec

	// Scheduler metrics
	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// Health metrics
	LastIndexedBlock prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bitr_backend"
	}

	return &Metrics{
		EventsIndexed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_indexed_total",
			Help:      "Total number of decoded events handled, by contract and event",
		}, []string{"contract", "event"}),
		IndexerLagGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "lag_blocks",
			Help:      "Blocks between chain head and last processed block",
		}),
		IndexerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Total number of indexer scan or handler errors",
		}),

		PoolsMirrored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "pools_mirrored_total",
			Help:      "Total number of pool snapshots written from chain reads",
		}),
		BetsMirrored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "bets_mirrored_total",
			Help:      "Total number of bets mirrored from BetPlaced events",
		}),
		MirrorDrifts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "drift_corrections_total",
			Help:      "Total number of pools whose aggregates diverged from chain state",
		}),

		OutcomesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "outcomes_submitted_total",
			Help:      "Total number of outcome submissions by category and result",
		}, []string{"category", "status"}),
		PoolsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "pools_settled_total",
			Help:      "Total number of settlement transactions by path",
		}, []string{"path"}),

		ReputationSynced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reputation",
			Name:      "users_synced_total",
			Help:      "Total number of user scores pushed on-chain",
		}),
		ReputationDecayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reputation",
			Name:      "users_decayed_total",
			Help:      "Total number of users whose score decayed for inactivity",
		}),

		TxSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "tx_sent_total",
			Help:      "Total number of transactions sent by contract method",
		}, []string{"method"}),
		TxFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "tx_failed_total",
			Help:      "Total number of transactions that reverted or timed out",
		}, []string{"method"}),

		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Total number of scheduled job runs by job and status",
		}, []string{"job", "status"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),

		LastIndexedBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_indexed_block",
			Help:      "Highest committed block number",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EventIndexed implements the indexer's counter surface.
func (m *Metrics) EventIndexed(contract, event string) {
	m.EventsIndexed.WithLabelValues(contract, event).Inc()
}

// IndexerLag implements the indexer's counter surface.
func (m *Metrics) IndexerLag(blocks uint64) {
	m.IndexerLagGauge.Set(float64(blocks))
}

// IndexerError implements the indexer's counter surface.
func (m *Metrics) IndexerError() {
	m.IndexerErrors.Inc()
}

// PoolMirrored implements the mirror's counter surface.
func (m *Metrics) PoolMirrored() {
	m.PoolsMirrored.Inc()
}

// BetMirrored implements the mirror's counter surface.
func (m *Metrics) BetMirrored() {
	m.BetsMirrored.Inc()
}

// MirrorDrift implements the mirror's counter surface. The pool id is
// logged by the mirror itself; the counter only tracks volume.
func (m *Metrics) MirrorDrift(_ uint64) {
	m.MirrorDrifts.Inc()
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobRuns.WithLabelValues(job, status).Inc()
	m.JobDuration.WithLabelValues(job).Observe(seconds)
}
