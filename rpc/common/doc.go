// Package common provides the configuration structures and logging utilities
// shared by the server, the client and the command line interface.
//
// Key Components:
//
//   - ServerConfig: Configuration of a server node, covering the transport
//     (endpoint, idle timeout, read buffer), the store (shards, sweep interval),
//     the append-only log and the admin endpoint. String pretty-prints it at startup.
//
//   - ClientConfig: Configuration for client connections.
//
//   - Logger: Custom logging implementation that plugs into the Dragonboat
//     logger package (logger.GetLogger) and formats every line as
//     "LEVEL | package | message".
package common
