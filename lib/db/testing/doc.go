// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the KVDB interface contract
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Implementations must read the current time only through the clock passed to
// the factory. The suite drives expiry with a manually advanced Clock instead
// of sleeping.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(now func() time.Time) db.KVDB {
//		return NewMyDatabase(now)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
