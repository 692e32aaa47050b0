package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var adapterEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "checkout_adapter_events_total",
	Help: "Events reported by provider adapters by method kind and event type.",
}, []string{"kind", "event"})

// GetAdapterEvents returns the adapter event counter.
func GetAdapterEvents() *prometheus.CounterVec {
	return adapterEvents
}
