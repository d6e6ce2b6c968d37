package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation.
// The implementation must read the current time only through now.
type DBFactory func(now func() time.Time) db.KVDB

// Clock is a manually advanced clock for deterministic expiry tests
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at an arbitrary fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Unix(1_700_000_000, 0)}
}

// Now returns the current time of the clock
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory)
		})

		t.Run("BinaryValues", func(t *testing.T) {
			testBinaryValues(t, factory)
		})

		t.Run("KeyExpiry", func(t *testing.T) {
			testKeyExpiry(t, factory)
		})

		t.Run("SetClearsExpiry", func(t *testing.T) {
			testSetClearsExpiry(t, factory)
		})

		t.Run("RemoveExpired", func(t *testing.T) {
			testRemoveExpired(t, factory)
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory)
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory)
		})

		t.Run("Incr&Decr", func(t *testing.T) {
			testIncrDecr(t, factory)
		})

		t.Run("IncrErrors", func(t *testing.T) {
			testIncrErrors(t, factory)
		})

		t.Run("Lists", func(t *testing.T) {
			testLists(t, factory)
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, factory)
		})

		t.Run("WrongType", func(t *testing.T) {
			testWrongType(t, factory)
		})

		t.Run("ConcurrentIncr", func(t *testing.T) {
			testConcurrentIncr(t, factory)
		})

		t.Run("ConcurrentPush", func(t *testing.T) {
			testConcurrentPush(t, factory)
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// newDB creates a database with a manual clock and closes it at the end of the test
func newDB(t testing.TB, factory DBFactory) (db.KVDB, *Clock) {
	clock := NewClock()
	database := factory(clock.Now)
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database, clock
}

func requireCode(t testing.TB, err error, code db.RetCode) {
	t.Helper()
	if got := db.CodeOf(err); got != code {
		t.Errorf("Expected return code %s, got %s (err: %v)", code, got, err)
	}
}

func requireItems(t testing.TB, got [][]byte, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("Expected %d items %q, got %d items %q", len(want), want, len(got), got)
		return
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("Item %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1)

	result, err := database.Get(testKey)
	if err != nil {
		t.Errorf("Expected key %s to exist after Set: %v", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2)

	result, err = database.Get(testKey)
	if err != nil {
		t.Errorf("Expected key %s to exist after Set: %v", testKey, err)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, err = database.Get("nonexistent-key")
	requireCode(t, err, db.RetCKeyAbsent)
	if !errors.Is(err, db.ErrKeyAbsent) {
		t.Errorf("Expected errors.Is(err, ErrKeyAbsent) for nonexistent key")
	}

	// the returned value must be a copy
	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'
	originalValue, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the stored value must be a copy as well
	input := []byte("input")
	database.Set("copy-key", input)
	input[0] = 'X'
	if stored, _ := database.Get("copy-key"); string(stored) != "input" {
		t.Errorf("Set should store a copy of the value, got %s", stored)
	}
}

func testBinaryValues(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	values := [][]byte{
		{},
		{0},
		{0xff, 0xfe, 0x00, '\r', '\n'},
		bytes.Repeat([]byte{0xaa}, 64*1024),
	}

	for i, v := range values {
		key := fmt.Sprintf("bin-%d", i)
		database.Set(key, v)

		got, err := database.Get(key)
		if err != nil {
			t.Fatalf("Expected key %s to exist: %v", key, err)
		}
		if !bytes.Equal(got, v) {
			t.Errorf("Value %d not preserved", i)
		}
	}
}

func testKeyExpiry(t *testing.T, factory DBFactory) {
	database, clock := newDB(t, factory)

	testKey := "expiring-key"
	testValue := []byte("expiring-value")

	database.SetE(testKey, testValue, 10*time.Second)

	clock.Advance(9 * time.Second)
	result, err := database.Get(testKey)
	if err != nil {
		t.Errorf("Key should still exist after 9s: %v", err)
	}
	if !bytes.Equal(result, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, result)
	}
	if !database.Has(testKey) {
		t.Errorf("Key should still exist after 9s (has)")
	}

	// exactly at the expiry instant the key is gone
	clock.Advance(time.Second)
	_, err = database.Get(testKey)
	requireCode(t, err, db.RetCKeyAbsent)
	if database.Has(testKey) {
		t.Errorf("Key should not exist after expiry (has)")
	}
	if database.Kind(testKey) != db.KindNone {
		t.Errorf("Expired key should have kind none")
	}
	if database.Delete(testKey) {
		t.Errorf("Deleting an expired key should not count as deletion")
	}

	// sub-second ttl
	database.SetE("ms-key", testValue, 100*time.Millisecond)
	clock.Advance(99 * time.Millisecond)
	if !database.Has("ms-key") {
		t.Errorf("Key with 100ms ttl should exist after 99ms")
	}
	clock.Advance(time.Millisecond)
	if database.Has("ms-key") {
		t.Errorf("Key with 100ms ttl should not exist after 100ms")
	}

	// non-positive ttl is expired right away
	database.SetE("past-key", testValue, -time.Second)
	if database.Has("past-key") {
		t.Errorf("Key with negative ttl should not exist")
	}
}

func testSetClearsExpiry(t *testing.T, factory DBFactory) {
	database, clock := newDB(t, factory)

	database.SetE("key", []byte("v1"), time.Second)
	database.Set("key", []byte("v2"))

	clock.Advance(time.Hour)
	result, err := database.Get("key")
	if err != nil {
		t.Fatalf("Set should clear a previous expiry: %v", err)
	}
	if string(result) != "v2" {
		t.Errorf("Expected v2, got %s", result)
	}
}

func testRemoveExpired(t *testing.T, factory DBFactory) {
	for _, tc := range []struct {
		size           int
		percentExpired int
	}{
		{0, 0},
		{20, 10},
		{200, 100},
		{1000, 50},
	} {
		t.Run(fmt.Sprintf("%d-%d%%", tc.size, tc.percentExpired), func(t *testing.T) {
			database, clock := newDB(t, factory)

			numExpired := tc.size * tc.percentExpired / 100

			// items without expiry
			for i := 0; i < tc.size-numExpired; i++ {
				database.Set(fmt.Sprintf("%d", i), []byte("v"))
			}

			// items that will have expired
			for i := 0; i < numExpired; i++ {
				database.SetE(fmt.Sprintf("e_%d", i), []byte("v"), time.Second)
			}

			// lists never expire
			if _, err := database.PushBack("list", []byte("item")); err != nil {
				t.Fatal(err)
			}

			clock.Advance(time.Second)

			if removed := database.RemoveExpired(); removed != numExpired {
				t.Errorf("Expected %d removed keys, got %d", numExpired, removed)
			}
			if removed := database.RemoveExpired(); removed != 0 {
				t.Errorf("Second sweep should remove nothing, removed %d", removed)
			}

			info := database.GetInfo()
			if info.Keys != tc.size-numExpired+1 {
				t.Errorf("Expected %d keys after sweep, got %d", tc.size-numExpired+1, info.Keys)
			}
			if !database.Has("list") {
				t.Errorf("List should survive the sweep")
			}
		})
	}
}

func testDelete(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	database.Set("delete-key", []byte("v"))
	if !database.Delete("delete-key") {
		t.Errorf("Expected Delete to report a removal")
	}
	if database.Has("delete-key") {
		t.Errorf("Expected key to not exist after Delete")
	}
	if database.Delete("delete-key") {
		t.Errorf("Expected second Delete to report no removal")
	}

	if _, err := database.PushBack("delete-list", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if !database.Delete("delete-list") {
		t.Errorf("Expected Delete to remove lists")
	}
	items, err := database.Range("delete-list", 0, 10)
	if err != nil || len(items) != 0 {
		t.Errorf("Expected empty range for deleted list, got %q (%v)", items, err)
	}
}

func testHas(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	if database.Has("missing") {
		t.Errorf("Has should be false for a missing key")
	}

	// querying must not create the key
	_, _ = database.Get("missing")
	_, _ = database.Range("missing", 0, 1)
	if database.Has("missing") || database.GetInfo().Keys != 0 {
		t.Errorf("Reads must not create keys")
	}

	database.Set("scalar", nil)
	if !database.Has("scalar") || database.Kind("scalar") != db.KindScalar {
		t.Errorf("Expected scalar key with empty value to exist")
	}

	if _, err := database.PushFront("list", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if !database.Has("list") || database.Kind("list") != db.KindList {
		t.Errorf("Expected list key to exist")
	}
}

func testIncrDecr(t *testing.T, factory DBFactory) {
	database, clock := newDB(t, factory)

	if v, err := database.Incr("counter"); err != nil || v != 1 {
		t.Errorf("Incr on absent key: expected 1, got %d (%v)", v, err)
	}
	if v, err := database.Decr("fresh"); err != nil || v != -1 {
		t.Errorf("Decr on absent key: expected -1, got %d (%v)", v, err)
	}

	database.Set("k", []byte("41"))
	if v, _ := database.Incr("k"); v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}
	if v, _ := database.Decr("k"); v != 41 {
		t.Errorf("Incr followed by Decr should round trip, got %d", v)
	}
	if stored, _ := database.Get("k"); string(stored) != "41" {
		t.Errorf("Expected stored decimal string 41, got %s", stored)
	}

	if v, _ := database.IncrBy("k", -50); v != -9 {
		t.Errorf("Expected -9, got %d", v)
	}

	// the expiry of a counter is kept
	database.SetE("ttl-counter", []byte("1"), time.Second)
	if v, _ := database.Incr("ttl-counter"); v != 2 {
		t.Errorf("Expected 2, got %d", v)
	}
	clock.Advance(time.Second)
	if database.Has("ttl-counter") {
		t.Errorf("Incr should keep the expiry of the key")
	}

	// an expired counter restarts at zero
	if v, _ := database.Incr("ttl-counter"); v != 1 {
		t.Errorf("Incr on expired key: expected 1, got %d", v)
	}
}

func testIncrErrors(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	for _, value := range []string{"abc", "", "1.5", " 1", "+1", "99999999999999999999"} {
		database.Set("bad", []byte(value))
		_, err := database.Incr("bad")
		requireCode(t, err, db.RetCNotInteger)

		// failed increments leave the value untouched
		if stored, _ := database.Get("bad"); string(stored) != value {
			t.Errorf("Failed Incr modified value %q to %q", value, stored)
		}
	}

	database.Set("max", []byte("9223372036854775807"))
	_, err := database.Incr("max")
	requireCode(t, err, db.RetCNotInteger)

	database.Set("min", []byte("-9223372036854775808"))
	_, err = database.Decr("min")
	requireCode(t, err, db.RetCNotInteger)

	_, err = database.IncrBy("absent-overflow", 0)
	requireCode(t, err, db.RetCSuccess)
}

func testLists(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	if n, err := database.PushFront("l", []byte("a")); err != nil || n != 1 {
		t.Errorf("Expected length 1, got %d (%v)", n, err)
	}
	if n, err := database.PushFront("l", []byte("b")); err != nil || n != 2 {
		t.Errorf("Expected length 2, got %d (%v)", n, err)
	}
	items, err := database.Range("l", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	requireItems(t, items, "b", "a")

	if _, err := database.PushBack("r", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if n, _ := database.PushBack("r", []byte("b")); n != 2 {
		t.Errorf("Expected length 2, got %d", n)
	}
	items, _ = database.Range("r", 0, 2)
	requireItems(t, items, "a", "b")

	// several items in one call
	if n, err := database.PushFront("multi", []byte("a"), []byte("b"), []byte("c")); err != nil || n != 3 {
		t.Errorf("Expected length 3, got %d (%v)", n, err)
	}
	if n, _ := database.PushBack("multi", []byte("x"), []byte("y")); n != 5 {
		t.Errorf("Expected length 5, got %d", n)
	}
	items, _ = database.Range("multi", 0, 5)
	requireItems(t, items, "c", "b", "a", "x", "y")

	// pushing nothing does not create a key
	if n, err := database.PushBack("nothing"); err != nil || n != 0 || database.Has("nothing") {
		t.Errorf("Pushing no items should not create a list, got length %d (%v)", n, err)
	}

	// items are copies
	item := []byte("orig")
	_, _ = database.PushBack("copy", item)
	item[0] = 'X'
	items, _ = database.Range("copy", 0, 1)
	requireItems(t, items, "orig")
	items[0][0] = 'Y'
	items, _ = database.Range("copy", 0, 1)
	requireItems(t, items, "orig")
}

func testRange(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	for _, v := range []string{"a", "b", "c", "d", "e"} {
		if _, err := database.PushBack("list", []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		start, stop int
		want        []string
	}{
		{0, 5, []string{"a", "b", "c", "d", "e"}},
		{0, 100, []string{"a", "b", "c", "d", "e"}},
		{1, 3, []string{"b", "c"}},
		{4, 5, []string{"e"}},
		{2, 2, nil},
		{3, 1, nil},
		{5, 10, nil},
		{-1, 3, nil},
		{-3, -1, nil},
	}

	for _, tt := range tests {
		items, err := database.Range("list", tt.start, tt.stop)
		if err != nil {
			t.Errorf("Range(%d, %d) returned error %v", tt.start, tt.stop, err)
			continue
		}
		requireItems(t, items, tt.want...)
	}

	items, err := database.Range("missing", 0, 10)
	if err != nil || len(items) != 0 {
		t.Errorf("Expected empty range for missing key, got %q (%v)", items, err)
	}
}

func testWrongType(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	database.Set("scalar", []byte("1"))
	if _, err := database.PushBack("scalar", []byte("x")); db.CodeOf(err) != db.RetCWrongType {
		t.Errorf("PushBack on scalar: expected WrongType, got %v", err)
	}
	if _, err := database.PushFront("scalar", []byte("x")); db.CodeOf(err) != db.RetCWrongType {
		t.Errorf("PushFront on scalar: expected WrongType, got %v", err)
	}
	if _, err := database.Range("scalar", 0, 1); db.CodeOf(err) != db.RetCWrongType {
		t.Errorf("Range on scalar: expected WrongType, got %v", err)
	}

	if _, err := database.PushBack("list", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := database.Get("list"); db.CodeOf(err) != db.RetCWrongType {
		t.Errorf("Get on list: expected WrongType, got %v", err)
	}
	if _, err := database.Incr("list"); db.CodeOf(err) != db.RetCWrongType {
		t.Errorf("Incr on list: expected WrongType, got %v", err)
	}

	// the entries are untouched
	if v, _ := database.Get("scalar"); string(v) != "1" {
		t.Errorf("Scalar modified by failed list operation: %s", v)
	}
	items, _ := database.Range("list", 0, 10)
	requireItems(t, items, "x")

	// Set replaces an entry of any kind
	database.Set("list", []byte("now-scalar"))
	if v, err := database.Get("list"); err != nil || string(v) != "now-scalar" {
		t.Errorf("Set should replace a list, got %s (%v)", v, err)
	}
}

func testConcurrentIncr(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	const (
		workers = 16
		perWork = 500
	)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				if w%2 == 0 {
					_, _ = database.Incr("counter")
				} else {
					_, _ = database.IncrBy("counter", 2)
				}
			}
		}(w)
	}
	wg.Wait()

	want := int64(workers/2*perWork + workers/2*perWork*2)
	if v, _ := database.IncrBy("counter", 0); v != want {
		t.Errorf("Expected counter %d, got %d", want, v)
	}
}

func testConcurrentPush(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	const (
		workers = 8
		perWork = 250
	)

	var (
		wg      sync.WaitGroup
		maxSeen atomic.Int64
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				var n int
				if w%2 == 0 {
					n, _ = database.PushFront("list", []byte("f"))
				} else {
					n, _ = database.PushBack("list", []byte("b"))
				}
				for {
					cur := maxSeen.Load()
					if int64(n) <= cur || maxSeen.CompareAndSwap(cur, int64(n)) {
						break
					}
				}
			}
		}(w)
	}
	wg.Wait()

	items, err := database.Range("list", 0, workers*perWork+1)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != workers*perWork || maxSeen.Load() != workers*perWork {
		t.Errorf("Expected %d items, got %d (max length seen %d)", workers*perWork, len(items), maxSeen.Load())
	}
}

func testInfo(t *testing.T, factory DBFactory) {
	database, _ := newDB(t, factory)

	database.Set("a", []byte("1"))
	database.SetE("b", []byte("2"), time.Minute)
	_, _ = database.PushBack("c", []byte("3"))

	info := database.GetInfo()
	if info.Keys != 3 || info.ScalarKeys != 2 || info.ListKeys != 1 || info.ExpiringKeys != 1 {
		t.Errorf("Unexpected info %+v", info)
	}
}
