package redis

import (
	"time"

	"github.com/Aleph-Alpha/gravity/v1/observability"
)

// observeOperation reports one command to the observer. A miss on a read is
// not reported as an error.
func (r *RedisClient) observeOperation(operation, key string, start time.Time, err error, size int64, metadata map[string]interface{}) {
	if r == nil || r.observer == nil {
		return
	}
	if IsNilError(err) {
		err = nil
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["miss"] = true
	}

	r.observer.ObserveOperation(observability.OperationContext{
		Component: "redis",
		Operation: operation,
		Resource:  key,
		Duration:  time.Since(start),
		Error:     err,
		Size:      size,
		Metadata:  metadata,
	})
}
