// Package rpc provides the network side of respkv: a server speaking the RESP
// protocol and a matching client.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by server, client
//     and command line.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets). The transports frame the byte
//     stream into commands with lib/resp and write the replies back.
//
//   - server: The command dispatcher and the server wiring of store, command
//     log, metrics and transport.
//
//   - client: A RESP client with typed methods for all server commands.
//
//   - metrics: Server metrics in the Prometheus text format and the admin
//     HTTP endpoint serving them.
package rpc
