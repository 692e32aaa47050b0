package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_state_transitions_total",
		Help: "Checkout session state transitions.",
	}, []string{"from", "to"})

	openSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_open_sessions",
		Help: "Checkout sessions currently open.",
	})
)

// GetStateTransitions returns the transition counter.
func GetStateTransitions() *prometheus.CounterVec {
	return stateTransitions
}

// GetOpenSessions returns the open session gauge.
func GetOpenSessions() prometheus.Gauge {
	return openSessions
}
