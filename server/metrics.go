package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tdl-smp/portal/notify"
)

type metrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	reviews         *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "submissions_total",
			Help:      "Form submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "appeal_reviews_total",
			Help:      "Appeal reviews by resulting status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.requestDuration,
		m.submissions,
		m.reviews,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.registry.MustRegister(notify.Collectors()...)
	return m
}

func (m *metrics) observeRequest(method string, code int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(code)).Observe(d.Seconds())
}

func (m *metrics) submission(kind, outcome string) {
	m.submissions.WithLabelValues(kind, outcome).Inc()
}
