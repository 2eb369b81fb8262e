// Package processor gates expensive inference calls.
//
// Process answers from the processing cache when it can. On a miss it runs
// the analysis through the shared circuit breaker and a bounded retry, caches
// the result for a day, and falls back to a short-lived placeholder when the
// backend is unavailable so that the event pipeline never blocks on it.
// Gateway applies the same breaker and retry to embedding calls.
package processor
