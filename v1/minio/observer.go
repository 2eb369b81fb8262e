package minio

import (
	"time"

	"github.com/Aleph-Alpha/gravity/v1/observability"
)

// observeOperation reports an operation with the bucket as resource and the
// object key as sub-resource.
func (m *MinioClient) observeOperation(operation, objectKey string, start time.Time, err error, size int64) {
	if m == nil || m.observer == nil {
		return
	}

	m.observer.ObserveOperation(observability.OperationContext{
		Component:   "minio",
		Operation:   operation,
		Resource:    m.cfg.Connection.BucketName,
		SubResource: objectKey,
		Duration:    time.Since(start),
		Error:       err,
		Size:        size,
	})
}
