// Package client implements a RESP client for respkv on top of a client
// transport (see rpc/transport).
//
// Key Components:
//
//   - NewRPCClient: Connects the transport and returns an RPCClient with one
//     typed method per server command (Ping, Echo, Get, Set, SetEX, Del, Exists,
//     Incr, Decr, LPush, RPush, LRange).
//
//   - Do / Pipeline: Raw access, returning the reply values unchanged. Pipeline
//     sends all frames in one write and reads the replies in order.
//
//   - ServerError: Error replies of the server are returned as ServerError by
//     the typed methods, I/O failures as regular (wrapped) errors.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoint:      "localhost:6379",
//	  TimeoutSecond: 5,
//	}
//
//	c, err := client.NewRPCClient(config, tcp.NewTCPClientTransport())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	_ = c.Set("mykey", []byte("myvalue"))
//	value, exists, _ := c.Get("mykey")
//
// Requests are never retried: a command like INCR is not idempotent, so a
// failed request is reported to the caller and the connection is restored
// lazily on the next call.
//
// Thread Safety:
//
//	RPCClient is thread-safe. Requests of concurrent callers are serialized
//	on the single connection of the transport.
package client
