// Package base provides the foundation for the socket transports (TCP, Unix)
// of the RESP server and client. Protocol-specific parts are injected through
// the IServerConnector and IClientConnector interfaces.
//
// Server:
//
//   - One goroutine per connection. Each read lands in a pooled scratch buffer
//     (sync.Pool) and is appended to the per-connection buffer. Complete frames
//     are extracted with resp.ExtractFrame in a loop, so a frame may arrive in
//     any number of reads and one read may carry many pipelined frames.
//
//   - Frames are handled strictly in arrival order. Replies are buffered in a
//     bufio.Writer and flushed once per read batch.
//
//   - Malformed input is answered with "-ERR Protocol error: ..." and the
//     connection is closed. A connection closed mid-frame discards its buffer.
//
//   - Open connections are tracked in an xsync.MapOf. Close stops accepting,
//     closes all connections and waits for their handlers to return.
//
// Client:
//
//   - A single connection with serialized requests. Send writes a batch of
//     frames in one flush and reads one reply per frame. Broken connections are
//     restored on the next call, requests are never retried.
//
// Thread Safety:
//
//	All public methods are thread-safe.
package base
