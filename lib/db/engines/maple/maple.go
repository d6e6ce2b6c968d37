package maple

import (
	"github.com/ValentinKolb/respkv/lib/db"
	"github.com/ValentinKolb/respkv/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/respkv/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"math"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultSweepInterval = 100 * time.Millisecond // Default interval between expiry sweeps
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory database
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	now       func() time.Time  // Clock used for expiry

	// expiry sweep
	sweepInterval  time.Duration
	sweepIsRunning atomic.Bool
	sweepStop      chan struct{}
	sweepDone      sync.WaitGroup
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards     int              // Number of shards (0 = runtime.NumCPU())
	SweepInterval time.Duration    // Time between expiry sweeps (0 = default, < 0 = no background sweep)
	Now           func() time.Time // Clock (nil = time.Now)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:     runtime.NumCPU(),     // Auto-determine based on CPU count
		SweepInterval: defaultSweepInterval, // Default sweep interval
		Now:           time.Now,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
// and starts the background expiry sweep.
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {
	defaults := DefaultOptions()

	// Generate default options if not provided
	if opts == nil {
		opts = defaults
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = defaults.NumShards
	}
	sweepInterval := opts.SweepInterval
	if sweepInterval == 0 {
		sweepInterval = defaults.SweepInterval
	}
	now := opts.Now
	if now == nil {
		now = defaults.Now
	}

	// Create shards
	shards := make([]*internal.Shard, numShards)
	for i := 0; i < numShards; i++ {
		shards[i] = internal.NewShard()
	}

	newDB := &mapleImpl{
		numShards:     numShards,
		seed:          util.GenerateSeed(),
		shards:        shards,
		now:           now,
		sweepInterval: sweepInterval,
		sweepStop:     make(chan struct{}),
	}

	// start the expiry sweep
	if sweepInterval > 0 {
		newDB.startSweep()
	}

	return newDB
}

// getShard returns the shard responsible for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) getShard(key string) *internal.Shard {
	return maple.shards[util.ShardIndex(key, maple.seed, len(maple.shards))]
}

// compute is the single entry point for all per-key operations.
// fn receives the live entry (expired scalars are presented as not loaded) and
// returns the new entry and whether the key should be deleted. The whole call is
// atomic with respect to every other operation on the same key.
//
// Thread-safety: This function uses the per-key locking of xsync.MapOf.Compute.
func (maple *mapleImpl) compute(key string, fn func(old internal.Entry, loaded bool) (entry internal.Entry, delete bool)) {
	shard := maple.getShard(key)
	now := maple.now()

	shard.Data.Compute(key, func(oldEntry internal.Entry, loaded bool) (internal.Entry, bool) {
		// lazy expiry: an expired scalar is indistinguishable from a missing key
		if loaded && oldEntry.IsExpired(now) {
			oldEntry = internal.Entry{}
			loaded = false
		}

		entry, del := fn(oldEntry, loaded)

		// an empty list is never kept
		if !del && entry.IsList() && entry.List.Len() == 0 {
			del = true
		}

		// nothing to delete and nothing written -> make sure no placeholder is created
		if del || (!loaded && entry.Value == nil && !entry.IsList()) {
			return oldEntry, true
		}
		return entry, false
	})
}

// --------------------------------------------------------------------------
// Scalar Operations
// --------------------------------------------------------------------------

// Get returns a copy of the scalar stored at key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, error) {
	var (
		data []byte
		err  error = db.ErrKeyAbsent
	)

	maple.compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		// case the key doesn't exist or is expired
		if !loaded {
			return e, true
		}

		// case wrong kind
		if e.IsList() {
			err = db.ErrWrongType
			return e, false
		}

		// case valid data -> copy data
		data = make([]byte, len(e.Value))
		copy(data, e.Value)
		err = nil
		return e, false
	})

	return data, err
}

// Set inserts or replaces the entry for key with a scalar without expiry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte) {
	entry := internal.NewScalar(value, time.Time{})
	maple.compute(key, func(_ internal.Entry, _ bool) (internal.Entry, bool) {
		return entry, false
	})
}

// SetE inserts or replaces the entry for key with a scalar that expires after ttl.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetE(key string, value []byte, ttl time.Duration) {
	expireAt := maple.now().Add(ttl)
	entry := internal.NewScalar(value, expireAt)
	maple.compute(key, func(_ internal.Entry, _ bool) (internal.Entry, bool) {
		return entry, false
	})
}

// Incr increments the integer at key by one.
func (maple *mapleImpl) Incr(key string) (int64, error) {
	return maple.IncrBy(key, 1)
}

// Decr decrements the integer at key by one.
func (maple *mapleImpl) Decr(key string) (int64, error) {
	return maple.IncrBy(key, -1)
}

// IncrBy adds delta to the integer stored at key. The expiry of an existing scalar is kept.
//
// Thread-safety: This method is thread-safe, the read-modify-write is a single atomic step.
func (maple *mapleImpl) IncrBy(key string, delta int64) (int64, error) {
	var (
		result int64
		err    error
	)

	maple.compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		var current int64
		if loaded {
			if e.IsList() {
				err = db.ErrWrongType
				return e, false
			}
			n, ok := parseInteger(e.Value)
			if !ok {
				err = db.ErrNotInteger
				return e, false
			}
			current = n
		}

		// overflow check
		if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
			err = db.NewError(db.RetCNotInteger, "increment or decrement would overflow")
			if !loaded {
				return e, true
			}
			return e, false
		}

		result = current + delta
		return internal.Entry{
			Value:    strconv.AppendInt(nil, result, 10),
			ExpireAt: e.ExpireAt,
		}, false
	})

	return result, err
}

// parseInteger parses a strict base-10 int64 (no sign prefix '+', no whitespace).
func parseInteger(b []byte) (int64, bool) {
	if len(b) == 0 || b[0] == '+' {
		return 0, false
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}

// --------------------------------------------------------------------------
// List Operations
// --------------------------------------------------------------------------

// PushFront prepends items to the list at key.
func (maple *mapleImpl) PushFront(key string, items ...[]byte) (int, error) {
	return maple.push(key, items, true)
}

// PushBack appends items to the list at key.
func (maple *mapleImpl) PushBack(key string, items ...[]byte) (int, error) {
	return maple.push(key, items, false)
}

// push is the shared implementation of PushFront and PushBack.
// All items are pushed in one atomic step.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) push(key string, items [][]byte, front bool) (int, error) {
	var (
		length int
		err    error
	)

	itemCopies := make([][]byte, len(items))
	for i, item := range items {
		itemCopies[i] = make([]byte, len(item))
		copy(itemCopies[i], item)
	}

	maple.compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			e = internal.NewList()
		} else if !e.IsList() {
			err = db.ErrWrongType
			return e, false
		}

		for _, item := range itemCopies {
			if front {
				e.List.PushFront(item)
			} else {
				e.List.PushBack(item)
			}
		}
		length = e.List.Len()
		return e, false
	})

	return length, err
}

// Range returns copies of stop-start list elements starting at start.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Range(key string, start, stop int) ([][]byte, error) {
	var (
		items = make([][]byte, 0)
		err   error
	)

	maple.compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return e, true
		}
		if !e.IsList() {
			err = db.ErrWrongType
			return e, false
		}

		length := e.List.Len()
		if start < 0 || stop <= start || start >= length {
			return e, false
		}
		end := min(stop, length)

		items = make([][]byte, 0, end-start)
		for i := start; i < end; i++ {
			v := e.List.Peek(i)
			itemCopy := make([]byte, len(v))
			copy(itemCopy, v)
			items = append(items, itemCopy)
		}
		return e, false
	})

	return items, err
}

// --------------------------------------------------------------------------
// Generic Key Operations
// --------------------------------------------------------------------------

// Has checks if a live entry exists for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	return maple.Kind(key) != db.KindNone
}

// Kind returns the kind of the live entry stored at key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Kind(key string) db.EntryKind {
	kind := db.KindNone
	maple.compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return e, true
		}
		kind = e.Kind()
		return e, false
	})
	return kind
}

// Delete removes the entry for key. Expired entries are removed too but do not count as deleted.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string) bool {
	deleted := false
	maple.compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		deleted = loaded
		return e, true
	})
	return deleted
}

// --------------------------------------------------------------------------
// Expiry Sweep
// --------------------------------------------------------------------------

// RemoveExpired scans all shards and removes every expired scalar.
//
// Thread-safety: This method is thread-safe and can be called concurrently with all other methods.
func (maple *mapleImpl) RemoveExpired() int {
	/*
		Note: The instant is taken once per sweep so that a long sweep has a
		consistent view of which entries are expired.
	*/
	now := maple.now()
	removed := 0

	for _, shard := range maple.shards {
		// collect candidates first, Compute must not be called from within Range
		var candidates []string
		shard.Data.Range(func(key string, e internal.Entry) bool {
			if e.IsExpired(now) {
				candidates = append(candidates, key)
			}
			return true
		})

		for _, key := range candidates {
			shard.Data.Compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
				// double-check: the entry could have been replaced in the meantime
				if !loaded || !e.IsExpired(now) {
					return e, !loaded
				}
				removed++
				return e, true
			})
		}
	}

	return removed
}

// startSweep starts the background sweep goroutine
// if the sweep is already running, this function does nothing
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) startSweep() {
	if maple.sweepIsRunning.CompareAndSwap(false, true) {
		maple.sweepDone.Add(1)
		go maple.sweeper()
	}
}

// stopSweep stops the background sweep and waits for it to exit.
// the sweep can't be started again after it has been stopped!
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) stopSweep() {
	if maple.sweepIsRunning.CompareAndSwap(true, false) {
		close(maple.sweepStop)
		maple.sweepDone.Wait()
	}
}

// sweeper is the main sweep loop
// WARNING: this method should never be called! to enable the sweep, use startSweep() and stopSweep()
func (maple *mapleImpl) sweeper() {
	defer maple.sweepDone.Done()

	ticker := time.NewTicker(maple.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-maple.sweepStop:
			return
		case <-ticker.C:
			start := time.Now()
			if removed := maple.RemoveExpired(); removed > 0 {
				Logger.Debugf("sweep removed %d expired keys in %s", removed, time.Since(start))
			}
		}
	}
}

// --------------------------------------------------------------------------
// Info and Lifecycle
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database. Counts are a fuzzy snapshot
// since shards are scanned without stopping writers.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	now := maple.now()
	info := db.DatabaseInfo{DbType: db.ImplMaple}

	shardSizes := make([]int, len(maple.shards))
	for i, shard := range maple.shards {
		shard.Data.Range(func(_ string, e internal.Entry) bool {
			if e.IsExpired(now) {
				return true
			}
			info.Keys++
			if e.IsList() {
				info.ListKeys++
			} else {
				info.ScalarKeys++
				if !e.ExpireAt.IsZero() {
					info.ExpiringKeys++
				}
			}
			return true
		})
		shardSizes[i] = shard.Data.Size()
	}

	info.Metadata = &struct {
		ShardCount    int    `json:"shard_count"`
		ShardSizes    []int  `json:"shard_sizes"`
		SweepInterval string `json:"sweep_interval"`
	}{
		ShardCount:    len(maple.shards),
		ShardSizes:    shardSizes,
		SweepInterval: maple.sweepInterval.String(),
	}

	return info
}

// Close stops the expiry sweep
func (maple *mapleImpl) Close() error {
	maple.stopSweep()
	return nil
}
