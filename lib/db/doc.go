// Package db provides the interface of the keyed store that backs the RESP server.
// It defines the KVDB interface that allows for consistent interaction with
// database backends while abstracting implementation details.
//
// Data Model:
//
//   - A key maps to exactly one entry. An entry is either a scalar (an arbitrary
//     byte string with an optional absolute expiry instant) or a list (an ordered
//     double-ended sequence of byte strings without expiry).
//
//   - Operations against a key holding the other kind fail with RetCWrongType.
//     Entries are never converted implicitly, only Set and Delete replace or
//     remove an entry regardless of its kind.
//
//   - A list that becomes empty is removed, so Has never reports an empty list.
//
// Errors:
//
// All failures are reported as *Error values carrying a RetCode. Use CodeOf to
// map an error to its code or errors.Is with one of the sentinels (ErrKeyAbsent,
// ErrWrongType, ErrNotInteger). Callers translate the codes into protocol replies.
//
// Note on Expiry:
//   - Expiry instants are computed from a monotonic clock supplied by the caller
//     of the implementation. Keys are never visible after their expiry instant:
//     every read checks the instant (lazy expiry) even if the entry still exists
//     internally.
//   - Implementations must additionally remove expired entries in the background
//     (RemoveExpired) so that keys which are never read again do not leak memory.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/respkv/lib/db/engines/maple) provides a
// sharded in-memory implementation of the KVDB interface with a periodic expiry sweep.
//
// The testing package (github.com/ValentinKolb/respkv/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
