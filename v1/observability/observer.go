// Package observability defines the hook through which infrastructure clients
// report the operations they perform. Clients call ObserveOperation after every
// backend call; v1/metrics provides the Prometheus-backed implementation.
package observability

import "time"

// OperationContext describes one completed backend operation.
type OperationContext struct {
	// Component is the reporting client: "redis", "kafka", "qdrant", "breaker", ...
	Component string

	// Operation is the verb: "get", "set", "publish", "consume", "search", ...
	Operation string

	// Resource is the key, topic or collection the operation touched.
	Resource string

	// SubResource adds detail such as a vector space or consumer group.
	SubResource string

	Duration time.Duration
	Error    error

	// Size is the payload size in bytes or the number of items, when known.
	Size int64

	Metadata map[string]interface{}
}

// Observer receives operation reports. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// NoopObserver discards every report.
type NoopObserver struct{}

// ObserveOperation implements Observer.
func (NoopObserver) ObserveOperation(OperationContext) {}
