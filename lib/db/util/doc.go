// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: seeded key hashing over string or byte keys, shard selection
//     and seed generation
package util
