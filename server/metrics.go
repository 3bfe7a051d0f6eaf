package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/limitd/pkg/ratelimit"
)

// serverMetrics mirrors decision outcomes into prometheus. The in-memory
// aggregator stays the dashboard's source of truth; these counters exist for
// external scraping.
type serverMetrics struct {
	decisions *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)
	return &serverMetrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "limitd",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
	}
}

func (m *serverMetrics) observeDecision(d ratelimit.Decision) {
	outcome := "allowed"
	if !d.Allowed {
		outcome = "blocked"
	}
	m.decisions.WithLabelValues(string(d.Algorithm), outcome).Inc()
}
