package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory(time.Now))
		})

		b.Run("SetExisting", func(b *testing.B) {
			benchmarkSetExisting(b, factory(time.Now))
		})

		b.Run("SetLargeValue", func(b *testing.B) {
			benchmarkSetLargeValue(b, factory(time.Now))
		})

		b.Run("SetWithExpiry", func(b *testing.B) {
			benchmarkSetWithExpiry(b, factory(time.Now))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory(time.Now))
		})

		b.Run("Incr", func(b *testing.B) {
			benchmarkIncr(b, factory(time.Now))
		})

		b.Run("PushBack", func(b *testing.B) {
			benchmarkPushBack(b, factory(time.Now))
		})

		b.Run("Range", func(b *testing.B) {
			benchmarkRange(b, factory(time.Now))
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory(time.Now))
		})

		b.Run("Has(not)", func(b *testing.B) {
			benchmarkHasNot(b, factory(time.Now))
		})

		b.Run("RemoveExpired", func(b *testing.B) {
			benchmarkRemoveExpired(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory(time.Now))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	largeValue := make([]byte, 1*1024*1024) // 1MB

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%100)
			database.Set(key, largeValue)
			counter++
		}
	})
}

// benchmarkSetWithExpiry tests the performance of SetE with TTL
func benchmarkSetWithExpiry(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-expiry-key-%d", counter)
			value := []byte(fmt.Sprintf("test-expiry-value-%d", counter))
			database.SetE(key, value, time.Duration(counter%1000)*time.Millisecond)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			_, _ = database.Get(key)
			counter++
		}
	})
}

// Parallel benchmarking for Incr on a small set of hot counters
func benchmarkIncr(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.Incr(fmt.Sprintf("counter-%d", counter%16))
			counter++
		}
	})
}

// Parallel benchmarking for PushBack
func benchmarkPushBack(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	item := []byte("list-item")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.PushBack(fmt.Sprintf("list-%d", counter%64), item)
			counter++
		}
	})
}

// Parallel benchmarking for reading the head of a list
func benchmarkRange(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	for i := 0; i < 1000; i++ {
		_, _ = database.PushBack("list", []byte(fmt.Sprintf("item-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = database.Range("list", 0, 10)
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(keys[i], value)
	}

	// Counter for atomic access
	var counter int64

	// Reset timer since we were doing setup
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys
			database.Delete(keys[idx])
		}
	})
}

// Parallel benchmarking for Has operation (with key miss)
func benchmarkHasNot(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	const key = "test-key"

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.Has(key)
		}
	})
}

// Benchmark for a full expiry sweep where half of the keys have expired.
// The sweep scans the whole database, parallelization is not meaningful here.
func benchmarkRemoveExpired(b *testing.B, factory DBFactory) {
	clock := NewClock()
	database := factory(clock.Now)
	b.Cleanup(func() {
		_ = database.Close()
	})

	const numKeys = 10000

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for k := 0; k < numKeys; k++ {
			key := fmt.Sprintf("test-key-%d", k)
			if k%2 == 0 {
				database.SetE(key, []byte("v"), time.Second)
			} else {
				database.Set(key, []byte("v"))
			}
		}
		clock.Advance(time.Second)
		b.StartTimer()

		database.RemoveExpired()
	}
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		_ = database.Close()
	})

	// Number of pre-populated keys
	numKeys := 50_000

	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], []byte(fmt.Sprintf("%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			key := keys[counter%numKeys]

			// 60% Get, 20% Set with TTL, 10% Incr, 10% Delete
			switch p := rnd.Float32(); {
			case p < .6:
				_, _ = database.Get(key)
			case p < .8:
				database.SetE(key, []byte("mixed"), time.Duration(rnd.Intn(1000))*time.Millisecond)
			case p < .9:
				_, _ = database.Incr(key)
			default:
				database.Delete(key)
			}

			counter++
		}
	})
}
