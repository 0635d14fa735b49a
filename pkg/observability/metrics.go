package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Run Loop's Prometheus counters, per spec §4.7:
// agentcore_turns_total, agentcore_retries_total{reason},
// agentcore_circuit_breaker_trips_total{kind}.
type Metrics struct {
	enabled  bool
	registry *prometheus.Registry

	TurnsTotal               *prometheus.CounterVec
	RetriesTotal             *prometheus.CounterVec
	CircuitBreakerTripsTotal *prometheus.CounterVec
}

// NewMetrics builds and registers the counters under namespace (empty
// is valid and omits the namespace prefix).
func NewMetrics(namespace string) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		enabled:  true,
		registry: registry,
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agentcore_turns_total",
			Help:      "Total number of completed Run Loop turns, by outcome.",
		}, []string{"outcome"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agentcore_retries_total",
			Help:      "Total number of Run Loop attempt retries, by reason.",
		}, []string{"reason"}),
		CircuitBreakerTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agentcore_circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips, by kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.TurnsTotal, m.RetriesTotal, m.CircuitBreakerTripsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler exposes the registry for scraping. Mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordTurn(outcome string) {
	if !m.enabled {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordRetry(reason string) {
	if !m.enabled {
		return
	}
	m.RetriesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordCircuitBreakerTrip(kind string) {
	if !m.enabled {
		return
	}
	m.CircuitBreakerTripsTotal.WithLabelValues(kind).Inc()
}
