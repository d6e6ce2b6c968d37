package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// GenerateSeed returns a random seed for key hashing.
// Keys of one store instance hash with the same seed, different instances spread differently.
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time if the system source fails
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Key is anything a store key can arrive as: a string or the raw bytes of a frame
type Key interface {
	~string | ~[]byte
}

// HashKey hashes key with seed (FNV-1a followed by a 64 bit finalizer).
// The string and byte forms of the same key hash to the same value, so callers
// never need to copy frame bytes into a string just to pick a shard.
func HashKey[K Key](key K, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for i := 0; i < len(key); i++ {
		hash ^= uint64(key[i])
		hash *= prime64
	}

	// FNV leaves the low bits weak for short keys, mix before taking a modulo
	hash ^= hash >> 33
	hash *= 0xff51afd7ed558ccd
	hash ^= hash >> 33
	hash *= 0xc4ceb9fe1a85ec53
	hash ^= hash >> 33
	return hash
}

// ShardIndex returns the shard in [0, shards) that key belongs to
func ShardIndex[K Key](key K, seed uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(HashKey(key, seed) % uint64(shards))
}
