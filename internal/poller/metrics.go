package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "checkout_poll_ticks_total",
	Help: "Reconciliation poll ticks by outcome (processing, settled, error, stale).",
}, []string{"outcome"})

// GetPollTicks returns the poll tick counter.
func GetPollTicks() *prometheus.CounterVec {
	return pollTicks
}
