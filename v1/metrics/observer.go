package metrics

import "github.com/Aleph-Alpha/gravity/v1/observability"

// ObserveOperation implements observability.Observer by feeding the built-in
// operation counter and latency histogram.
func (m *Metrics) ObserveOperation(op observability.OperationContext) {
	status := "ok"
	if op.Error != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(op.Component, op.Operation, status).Inc()
	m.operationDuration.WithLabelValues(op.Component, op.Operation).Observe(op.Duration.Seconds())
}
