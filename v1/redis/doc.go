// Package redis wraps go-redis for the processing cache.
//
// Every command reports to an observability.Observer; cache misses are
// reported as successful operations with a "miss" flag so they do not show
// up as errors. JSON helpers store and load structured values:
//
//	if err := client.SetJSON(ctx, "doc_analysis:"+fp, result, 24*time.Hour); err != nil {
//		return err
//	}
//	err := client.GetJSON(ctx, "doc_analysis:"+fp, &result)
//	if redis.IsNilError(err) {
//		// miss
//	}
package redis
