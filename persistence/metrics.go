package persistence

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records backing file activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	saves        *prometheus.CounterVec
	readFailures *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
}

// NewMetrics creates Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save calls by service and outcome.",
		}, []string{"service", "status"}),
		readFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Backing file reads that were treated as empty.",
		}, []string{"service"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Save latency, including time spent waiting for the file lock.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"service"}),
	}

	for _, c := range []prometheus.Collector{m.saves, m.readFailures, m.saveDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeSave(service string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.saves.WithLabelValues(service, status).Inc()
	m.saveDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

func (m *Metrics) observeReadFailure(service string) {
	if m == nil {
		return
	}
	m.readFailures.WithLabelValues(service).Inc()
}
