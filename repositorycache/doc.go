// Package repositorycache provides the cached recipe repository.
//
// # Overview
//
// CachedRecipes decorates a recipe.Repository with the cache-aside protocol
// of package cache. Read operations are served from the cache when possible
// and computed from the repository otherwise. Write operations go straight to
// the repository and then run an invalidation sweep before returning.
//
// # Basic Usage
//
//	base := recipe.NewBunRepository(db)
//	svc := cache.NewServiceFromConfig(store, cfg, cache.WithLogger(logger))
//
//	recipes := repositorycache.New(base, svc, cfg, repositorycache.WithLogger(logger))
//
//	all, err := recipes.GetAll(ctx)
//	dinners, err := recipes.SearchByMode(ctx, &mode, "Dinner")
//	detail, err := recipes.GetDetail(ctx, 42)
//
// # Cached vs Fresh Data
//
// Cached operations:
//   - GetAll, Search, SearchByMode (search TTL, 24h by default)
//   - the recipe part of GetDetail (detail TTL, 10h by default)
//
// Always fresh:
//   - the nutrition facts of GetDetail
//
// # Invalidation
//
// After Create, Update, AttachIngredient, Delete and Import the Sweeper
// removes:
//   - the all-recipes key
//   - every search key in {known modes, all} x {known filters, no filter}
//   - the detail keys of the touched recipes
//   - with key tracking on, every search key issued since the last sweep
//
// Searches for other keyword combinations stay cached until their TTL
// expires unless tracking is on. Tracking is per process: keys issued by
// other instances sharing the same cache are not seen.
//
// A read that misses before a sweep and writes back after it may store the
// pre-mutation result until the next sweep or TTL. This window is accepted.
//
// # Warming
//
// Prepopulator runs the all-recipes query and the swept cross product with
// bounded concurrency. Failures are logged and counted, never fatal.
package repositorycache
