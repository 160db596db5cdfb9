package notify

import "github.com/prometheus/client_golang/prometheus"

var deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "portal",
	Name:      "notification_deliveries_total",
	Help:      "Notification delivery attempts by kind and result.",
}, []string{"kind", "result"})

// Collectors returns the metrics owned by this package
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{deliveries}
}
