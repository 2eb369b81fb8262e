package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service registry and the HTTP server exposing it.
type Metrics struct {
	Server   *http.Server
	Registry *prometheus.Registry

	// registerer adds the constant service label to everything registered through it.
	registerer prometheus.Registerer

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewMetrics creates an isolated registry, the built-in operation metrics and
// the /metrics server. The server is started by the fx lifecycle hook.
//
// Example:
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "gravityd"})
//	processed := m.CreateCounter("fragments_processed_total", "Fragments processed", []string{"status"})
func NewMetrics(cfg Config) *Metrics {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)

	m := &Metrics{
		Registry:   registry,
		registerer: wrapped,
	}

	m.operationsTotal = createCounterVec("backend_operations_total",
		"Backend operations by component, operation and status",
		[]string{"component", "operation", "status"})
	m.operationDuration = createHistogramVec("backend_operation_duration_seconds",
		"Backend operation latency in seconds",
		[]string{"component", "operation"}, prometheus.DefBuckets)

	wrapped.MustRegister(m.operationsTotal, m.operationDuration)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
	return m
}
