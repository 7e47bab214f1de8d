// Package memkv provides a high-throughput thread-safe in-memory store with
// Redis-like basics: Set/Get/Delete, TTL/Expire, in-place value updates and
// cheap atomic metrics.
//
// Properties:
//   - Sharded map guarded by RW mutexes (256 shards by default)
//   - TTL support with a background goroutine removing expired keys
//   - Value reads return copies by default (Options.CopyOnGet)
//   - Atomic Update(key, fn) read-modify-write under the shard lock
//   - Optional cap on total stored bytes (Options.MaxBytes)
//
// Within petasos it backs the node-local actionable-task cache and the
// in-process Ponos registry store.
package memkv
