// Package snapcache caches results of slow, paid remote calls (image
// analysis, listing generation) in two layers: a fast in-process provider
// and an optional persistent one.
//
// Components:
//   - Provider: byte store with TTL (otter, ristretto, bigcache, redis, sqlite).
//   - Store: the two layers. Frames entries with their write stamp and TTL,
//     removes expired or corrupt entries on read and promotes persistent hits.
//   - Manager[V]: typed strategies over a Store with a pluggable Codec[V].
//
// Keys:
//
//	<prefix>:<category>:<id>   e.g. @snap:visionData:3f9a0c1d2e4b5a67
//
// Strategies:
//
//	v, err := m.CacheFirst(ctx, snapcache.VisionData, hash, fetch)           // fresh cache, else fetch
//	v, err := m.NetworkFirst(ctx, snapcache.ListingData, hash, fetch)        // fetch, else any cached value
//	v, err := m.StaleWhileRevalidate(ctx, snapcache.Inventory, userID, fetch) // cached now, refresh in background
package snapcache
