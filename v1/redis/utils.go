package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Ping checks that the server is reachable.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns the value of key, or an error matching IsNilError when absent.
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	result, err := r.client.Get(ctx, key).Result()
	r.observeOperation("get", key, start, err, int64(len(result)), nil)
	return result, err
}

// Set writes value with ttl. A ttl of 0 means no expiry.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := r.client.Set(ctx, key, value, ttl).Err()
	r.observeOperation("set", key, start, err, 0, ttlMetadata(ttl))
	return err
}

// SetNX writes value only if key does not exist and reports whether it did.
func (r *RedisClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	md := ttlMetadata(ttl)
	md["was_set"] = ok
	r.observeOperation("setnx", key, start, err, 0, md)
	return ok, err
}

// Delete removes keys and returns how many existed.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	n, err := r.client.Del(ctx, keys...).Result()
	resource := ""
	if len(keys) == 1 {
		resource = keys[0]
	}
	r.observeOperation("del", resource, start, err, n, nil)
	return n, err
}

// TTL returns the remaining time to live of key.
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

// SetJSON marshals value and writes it with ttl.
func (r *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return r.Set(ctx, key, data, ttl)
}

// GetJSON reads key and unmarshals it into dest.
func (r *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

func ttlMetadata(ttl time.Duration) map[string]interface{} {
	md := map[string]interface{}{}
	if ttl > 0 {
		md["ttl"] = ttl.String()
	}
	return md
}
