package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "structdex",
			Name:      "queries_total",
			Help:      "Total number of translated queries executed",
		},
		[]string{"set", "shape", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "structdex",
			Name:      "query_duration_seconds",
			Help:      "Query execution duration in seconds, until the first row",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"set", "shape"},
	)

	StructuresIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "structdex",
			Name:      "structures_indexed_total",
			Help:      "Total structures flattened into index rows",
		},
		[]string{"set"},
	)

	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "structdex",
			Name:      "writes_total",
			Help:      "Total write operations by kind and outcome",
		},
		[]string{"set", "op", "status"},
	)

	SyncDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "structdex",
			Name:      "sync_deleted_rows_total",
			Help:      "Side-table rows pruned by the schema synchronizer",
		},
		[]string{"set", "table"},
	)
)

var storeMetricsRegistered bool

// RegisterStoreMetrics registers Prometheus store metrics. Must be called once from main.
func RegisterStoreMetrics() {
	if storeMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(StructuresIndexedTotal)
	prometheus.MustRegister(WritesTotal)
	prometheus.MustRegister(SyncDeletedTotal)
	storeMetricsRegistered = true
}

// Recorder feeds the store metrics from the services.
type Recorder struct{}

// ObserveQuery records one query execution.
func (Recorder) ObserveQuery(set, shape string, d time.Duration, err error) {
	QueriesTotal.WithLabelValues(set, shape, status(err)).Inc()
	QueryDuration.WithLabelValues(set, shape).Observe(d.Seconds())
}

// ObserveWrite records one write operation over n structures.
func (Recorder) ObserveWrite(set, op string, n int, err error) {
	WritesTotal.WithLabelValues(set, op, status(err)).Inc()
	if err == nil && n > 0 && (op == "insert" || op == "update") {
		StructuresIndexedTotal.WithLabelValues(set).Add(float64(n))
	}
}

// ObserveSync records rows pruned by the synchronizer.
func (Recorder) ObserveSync(set, table string, deleted int64) {
	SyncDeletedTotal.WithLabelValues(set, table).Add(float64(deleted))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
