// Package cache provides the cache-aside building blocks of the query layer.
//
// # Overview
//
// The package exports:
//
//   - Store: the narrow get/set/remove view of a remote cache
//   - Service with GetOrCompute and GetOrComputeList: the cache-aside protocol
//   - KeyNormalizer: canonical keys for keyword/mode filters
//   - Policy: what is worth storing (non-nil, non-empty, under a size ceiling,
//     published)
//
// # Basic Usage
//
//	svc := cache.NewService(store, cache.WithLogger(logger))
//	keys := cache.NewKeyNormalizer("recipe")
//
//	key := keys.SearchKey(nil, "Dinner, soup")
//	recipes, err := cache.GetOrComputeList(ctx, svc, key, 24*time.Hour, func(ctx context.Context) ([]Recipe, error) {
//		return repo.Search(ctx, filter)
//	})
//
// # Key Normalization
//
// Keywords are split on commas, trimmed, lowercased, deduplicated and sorted,
// so "Soup, dinner" and " DINNER,soup ,soup" share a key. A missing mode
// normalizes to "all". Segments are escaped so the ':' separator cannot
// appear inside them, and very long keyword lists are replaced by an xxhash
// digest.
//
// # Failure Semantics
//
// The cache is an accelerator, never a dependency:
//
//   - a failed or timed out Get is a miss
//   - a failed Set is logged and the computed value is still returned
//   - a failed Remove is logged and reported to the caller for accounting
//   - errors from the fetch function are returned unchanged
//
// Every store call runs under the configured operation timeout, so a slow or
// partitioned cache costs at most one timeout per call.
//
// # Consistency
//
// Nothing serializes a write-back against a concurrent invalidation sweep. A
// read that started before a sweep may store a value older than the mutation;
// that entry lives until its TTL. Two concurrent misses on the same key both
// run the fetch function and the last write wins.
package cache
