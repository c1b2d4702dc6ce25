package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics holds Prometheus metrics for the observation ingest pipeline.
type IngestMetrics struct {
	ObservationsIngested *prometheus.CounterVec
	IngestDuration       prometheus.Histogram
	BatchSize            prometheus.Histogram
}

// NewIngestMetrics creates and registers ingest pipeline metrics on the given registry.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		ObservationsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_ingested_total",
			Help:      "Total number of observations ingested, by result.",
		}, []string{"result"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of observation batch ingestion in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_size",
			Help:      "Number of values per ingested batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}

	reg.MustRegister(m.ObservationsIngested, m.IngestDuration, m.BatchSize)
	return m
}
