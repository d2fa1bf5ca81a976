// Package recordcache serves User records from a RecordStore through a
// cache-aside layer that never publishes a value older than the last write.
//
// Components:
//   - RecordStore: backing collection (store/memstore, store/redisstore,
//     store/sqlstore, store/dynamostore).
//   - SequenceCounter: atomic, seeded id counters (package sequence).
//   - CacheStore: namespaced byte entries over a provider.Provider, framed
//     with a per-key generation. NewNoopCacheStore disables caching.
//   - Metrics: per-namespace hit/miss counters, also a prometheus.Collector.
//   - Instrumentation: decorators that time, classify and log Service and
//     CacheStore calls and forward an Observation per call.
//
// Keys:
//
//	rc:users:<id>      - single records
//	rc:users_all:all   - the full collection
//
// Read pattern (GetByID, GetAll):
//
//	v, ok := cache.Get(ns, key)          // hit => return
//	obs   := cache.Version(ns, key)      // before the store read
//	v     := store.FindByID(id)
//	_      = cache.PutVersioned(ns, key, v, obs) // dropped if evicted meanwhile
//
// Writes go to the store first, then Evict the affected entries.
package recordcache
