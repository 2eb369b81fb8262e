package metrics

import (
	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is what domain packages depend on to create their own metrics.
//
// Implemented by *Metrics.
type MetricsCollector interface {
	observability.Observer

	CreateCounter(name, help string, labels []string) *prometheus.CounterVec
	CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec
	CreateGauge(name, help string, labels []string) *prometheus.GaugeVec
}
