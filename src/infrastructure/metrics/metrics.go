package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by retrieval, chat and ingestion.
// A nil *Metrics records nothing.
type Metrics struct {
	retrievalLatency  *prometheus.HistogramVec
	retrievalFailures *prometheus.CounterVec
	answers           *prometheus.CounterVec
	ingestedDocs      *prometheus.CounterVec
	ingestRetries     prometheus.Counter
	batchDuration     prometheus.Histogram
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "govrag",
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of retrieval calls by mode and backend",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "backend"}),
		retrievalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govrag",
			Name:      "retrieval_failures_total",
			Help:      "Retrieval calls that returned an error",
		}, []string{"mode", "backend"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govrag",
			Name:      "answers_total",
			Help:      "Answers produced, labelled by the path that produced them",
		}, []string{"path"}),
		ingestedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "govrag",
			Name:      "ingested_documents_total",
			Help:      "Documents processed by ingestion, by outcome",
		}, []string{"outcome"}),
		ingestRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "govrag",
			Name:      "ingest_batch_retries_total",
			Help:      "Batch upload retries after a transient failure",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "govrag",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Wall time of one batch including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(
		m.retrievalLatency,
		m.retrievalFailures,
		m.answers,
		m.ingestedDocs,
		m.ingestRetries,
		m.batchDuration,
	)
	return m
}

func (m *Metrics) ObserveRetrieval(mode, backend string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(mode, backend).Observe(elapsed.Seconds())
	if err != nil {
		m.retrievalFailures.WithLabelValues(mode, backend).Inc()
	}
}

func (m *Metrics) CountAnswer(path string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(path).Inc()
}

func (m *Metrics) CountIngested(succeeded, failed int) {
	if m == nil {
		return
	}
	m.ingestedDocs.WithLabelValues("succeeded").Add(float64(succeeded))
	m.ingestedDocs.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) CountRetry() {
	if m == nil {
		return
	}
	m.ingestRetries.Inc()
}

func (m *Metrics) ObserveBatch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(elapsed.Seconds())
}
