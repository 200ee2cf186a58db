package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgmetrics "RegimeFlow/pkg/metrics"
)

// ReportMetrics instruments the report HTTP endpoints.
type ReportMetrics struct {
	Latency *prometheus.HistogramVec
	Errors  *prometheus.CounterVec
}

func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	m := &ReportMetrics{
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "regimeflow",
				Subsystem: "report",
				Name:      "latency_seconds",
				Help:      "Latency of report endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "regimeflow",
				Subsystem: "report",
				Name:      "errors_total",
				Help:      "Errors by report endpoint",
			},
			[]string{"endpoint"},
		),
	}
	m.Latency = pkgmetrics.Register(reg, m.Latency)
	m.Errors = pkgmetrics.Register(reg, m.Errors)
	return m
}
