package minio

import (
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrObjectNotFound is returned when the key does not exist.
	ErrObjectNotFound = errors.New("minio: object not found")

	// ErrObjectTooLarge is returned when an object exceeds MaxObjectSize.
	ErrObjectTooLarge = errors.New("minio: object too large")

	// ErrInvalidKey is returned for an empty object key.
	ErrInvalidKey = errors.New("minio: invalid object key")
)

// TranslateError maps MinIO error responses to package errors. Unknown
// errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	case "EntityTooLarge":
		return ErrObjectTooLarge
	}
	return err
}
