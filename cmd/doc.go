// Package cmd implements the command-line interface of respkv. It provides a
// hierarchical command structure with operations for running the server,
// interacting with it as a client and inspecting command logs.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the respkv server
//   - kv: Client commands (get, set, lpush, ...) and the perf benchmark
//   - aof: Offline tools for append-only command logs (check)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables RESPKV_<FLAG>, with dashes
// replaced by underscores (e.g. RESPKV_AOF_PATH=/var/lib/respkv.aof). The
// files .env and .env.local are loaded if present.
//
// See respkv -help for a list of all commands.
package cmd
