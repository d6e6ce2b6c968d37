package util

import (
	"strconv"
	"testing"
)

func TestHashKey(t *testing.T) {
	if HashKey("key", 1) != HashKey("key", 1) {
		t.Error("hash is not deterministic")
	}
	if HashKey("key", 1) == HashKey("key", 2) {
		t.Error("seed does not change the hash")
	}
	if HashKey("a", 0) == HashKey("b", 0) {
		t.Error("different keys hash to the same value")
	}
	if HashKey("key\r\n\x00", 7) != HashKey([]byte("key\r\n\x00"), 7) {
		t.Error("string and byte form of a key hash differently")
	}
	if HashKey("", 3) != HashKey([]byte(nil), 3) {
		t.Error("empty string and nil bytes hash differently")
	}
}

func TestShardIndex(t *testing.T) {
	tests := []struct {
		name   string
		shards int
	}{
		{"single shard", 1},
		{"no shards", 0},
		{"power of two", 16},
		{"odd count", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				key := "key-" + strconv.Itoa(i)
				idx := ShardIndex(key, 42, tt.shards)
				if idx < 0 || (tt.shards > 0 && idx >= tt.shards) || (tt.shards <= 1 && idx != 0) {
					t.Fatalf("key %s: index %d out of range for %d shards", key, idx, tt.shards)
				}
				if idx != ShardIndex([]byte(key), 42, tt.shards) {
					t.Fatalf("key %s: byte form lands on another shard", key)
				}
			}
		})
	}
}

func TestShardIndexDistribution(t *testing.T) {
	const shards, keys = 8, 8000
	seed := GenerateSeed()

	counts := make([]int, shards)
	for i := 0; i < keys; i++ {
		counts[ShardIndex("key-"+strconv.Itoa(i), seed, shards)]++
	}

	// every shard gets a reasonable share of the keys
	for shard, n := range counts {
		if n < keys/shards/2 {
			t.Errorf("shard %d got only %d of %d keys", shard, n, keys)
		}
	}
}
