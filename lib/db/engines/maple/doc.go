// Package maple implements a sharded in-memory key-value database (KVDB)
// holding scalars with optional expiry and double-ended lists. It provides a
// complete implementation of the db.KVDB interface with a focus on thread safety
// and predictable latency.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages
//     shards, runs the background expiry sweep and provides the public API.
//
//   - Shard: A partition of the database that manages a subset of the key space.
//     Each shard is backed by an xsync.MapOf whose Compute method serializes all
//     operations on a single key. Operations on different keys never block each other.
//
//   - Entry: The value stored under a key. A scalar carries its bytes and an
//     optional absolute expiry instant, a list carries a deque.Deque of items.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: util.ShardIndex hashes the key with a database-specific
//     seed and maps the mixed hash onto the shard slice.
//
//   - Per-key Atomicity: Every operation is a single MapOf.Compute call. The
//     read-modify-write of Incr and the push of a list item therefore never
//     interleave with another operation on the same key.
//
//   - Lazy Expiry: Inside Compute an expired scalar is presented to the operation
//     as a missing key. Reads remove it on the way, writes replace it.
//
//   - Expiry Sweep: A single goroutine calls RemoveExpired at a fixed interval
//     (100ms by default). The sweep collects candidates per shard and removes
//     each with a Compute call that re-checks the expiry, so a key that was
//     rewritten in the meantime survives.
//
//   - Clock: All expiry instants come from the clock passed in DBOptions (time.Now
//     by default). time.Now carries a monotonic reading, so wall clock jumps do not
//     shorten or extend a TTL.
//
// Statistics are available via GetInfo. The counts are a fuzzy snapshot since
// shards are scanned without stopping writers.
package maple
