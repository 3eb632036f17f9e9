package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver counts events by type and severity.
type PrometheusObserver struct {
	events *prometheus.CounterVec
}

// NewPrometheusObserver creates a PrometheusObserver and registers its
// counter with reg.
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) (*PrometheusObserver, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Persistence events observed, by type and level.",
	}, []string{"type", "level"})

	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &PrometheusObserver{events: events}, nil
}

func (o *PrometheusObserver) OnEvent(ctx context.Context, event Event) {
	o.events.WithLabelValues(string(event.Type), event.Level.String()).Inc()
}
