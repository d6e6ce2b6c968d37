// Package server implements the RESP server of respkv: the command dispatcher
// and the wiring of store, command log, metrics and transport.
//
// Key Components:
//
//   - Dispatcher: Executes one command frame against a db.KVDB and returns the
//     reply. Command names are case-insensitive, arity is checked before the
//     handler runs and every failure is an error reply (never a Go error).
//     Successful mutating commands (SET, DEL, INCR, DECR, LPUSH, RPUSH) are
//     appended to an optional CommandLogger under the dispatcher write lock, so
//     the log order equals the order in which the mutations became visible.
//
//   - NewRPCServer: Creates a server for a common.ServerConfig and a transport.
//     Serve replays the command log (if enabled), opens it for appending,
//     starts the optional admin HTTP endpoint and blocks in the transport.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:   "0.0.0.0:6379",
//	  Transport:  common.TransportTCP,
//	  AOFEnabled: true,
//	  AOFPath:    "respkv.aof",
//	  LogLevel:   "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPDefaultServerTransport())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Supported commands:
//
//	PING [message]          ECHO message
//	GET key                 SET key value [EX seconds | PX milliseconds]
//	EXISTS key [key ...]    DEL key [key ...]
//	INCR key                DECR key
//	LPUSH key item [...]    RPUSH key item [...]
//	LRANGE key start stop
//
// Thread Safety:
//
//	Dispatch can be called concurrently from any number of connections.
//	Serve must be called only once, Close may be called from any goroutine.
package server
