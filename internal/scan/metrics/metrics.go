package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ingestion pipeline.
type Metrics struct {
	// Ingestion outcomes by result and rejection reason
	IngestOutcome *prometheus.CounterVec

	// Health levels assigned to accepted records
	AssessmentLevel *prometheus.CounterVec

	// Records per batch submission
	BatchSize prometheus.Histogram

	// Persistence latency per record
	StoreLatency prometheus.Histogram
}

// New creates a Metrics instance with all ingestion metrics registered.
func New() *Metrics {
	return &Metrics{
		IngestOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "evscan_ingest_outcomes_total",
			Help: "Total ingestion outcomes by result and rejection reason",
		}, []string{"result", "reason"}), // result: "accepted"|"rejected"

		AssessmentLevel: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "evscan_assessment_levels_total",
			Help: "Total health levels assigned to accepted scan records",
		}, []string{"level"}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "evscan_batch_size_records",
			Help:    "Number of records per batch submission",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		StoreLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "evscan_store_save_duration_seconds",
			Help:    "Duration of persisting one scan record with its assessment",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOutcome records one ingestion outcome. Reason is empty for accepts.
func (m *Metrics) IncrementOutcome(result, reason string) {
	if m != nil {
		m.IngestOutcome.WithLabelValues(result, reason).Inc()
	}
}

// IncrementLevel records the level assigned to an accepted record.
func (m *Metrics) IncrementLevel(level string) {
	if m != nil {
		m.AssessmentLevel.WithLabelValues(level).Inc()
	}
}

// ObserveBatchSize records the size of a submitted batch.
func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// ObserveStoreLatency records the duration of one record's persistence.
func (m *Metrics) ObserveStoreLatency(d time.Duration) {
	if m != nil {
		m.StoreLatency.Observe(d.Seconds())
	}
}
