package maple

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/lib/db"
	dbtesting "github.com/ValentinKolb/respkv/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func(now func() time.Time) db.KVDB {
		// no background sweep, the suite calls RemoveExpired itself
		return NewMapleDB(&DBOptions{SweepInterval: -1, Now: now})
	})
}

func TestBackgroundSweep(t *testing.T) {
	clock := dbtesting.NewClock()
	database := NewMapleDB(&DBOptions{
		NumShards:     4,
		SweepInterval: 5 * time.Millisecond,
		Now:           clock.Now,
	})
	defer database.Close()

	for i := 0; i < 100; i++ {
		database.SetE(fmt.Sprintf("key-%d", i), []byte("v"), time.Second)
	}
	database.Set("keep", []byte("v"))
	clock.Advance(time.Second)

	// the keys are removed without being read
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if database.GetInfo().Keys == 1 && shardEntries(database) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if n := shardEntries(database); n != 1 {
		t.Fatalf("Expected sweep to leave 1 physical entry, found %d", n)
	}
	if !database.Has("keep") {
		t.Errorf("Key without expiry was removed by the sweep")
	}
}

func TestCloseStopsSweep(t *testing.T) {
	database := NewMapleDB(&DBOptions{SweepInterval: time.Millisecond})
	if err := database.Close(); err != nil {
		t.Fatalf("Close returned error %v", err)
	}
	// a second close is a no-op
	if err := database.Close(); err != nil {
		t.Fatalf("second Close returned error %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	info := database.GetInfo()
	if info.DbType != db.ImplMaple {
		t.Errorf("Expected db type %s, got %s", db.ImplMaple, info.DbType)
	}
	if info.Keys != 0 {
		t.Errorf("Expected empty database, got %d keys", info.Keys)
	}
}

// shardEntries counts the physical entries of all shards, including expired ones
func shardEntries(database db.KVDB) int {
	total := 0
	for _, shard := range database.(*mapleImpl).shards {
		total += shard.Data.Size()
	}
	return total
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "MapleDB", func(now func() time.Time) db.KVDB {
		return NewMapleDB(&DBOptions{Now: now})
	})
}
