package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// Nil is returned when a key does not exist.
var Nil = redis.Nil

// IsNilError reports whether err means "key does not exist".
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}
