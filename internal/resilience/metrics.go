package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BreakerState exposes each breaker's state: 0 closed, 1 open, 2 half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current circuit breaker state per target (0=closed, 1=open, 2=half-open).",
	}, []string{"target"})
	// BreakerTransitions counts state changes.
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_transitions_total",
		Help: "Count of circuit breaker state transitions.",
	}, []string{"target", "from", "to"})
	// BreakerOpenedTotal counts trips into the open state.
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_opened_total",
		Help: "Number of times a circuit breaker opened.",
	}, []string{"target"})
	// HTTPAttemptsTotal counts outbound attempts made by HTTPClient.
	HTTPAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_http_attempts_total",
		Help: "Outbound HTTP attempts per target and outcome.",
	}, []string{"target", "outcome"})

	registerOnce sync.Once
)

// MustRegisterMetrics registers the resilience collectors once per process.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, BreakerOpenedTotal, HTTPAttemptsTotal} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}
