// Package aof implements the append-only command log of the server.
//
// Every committed mutating command (SET, DEL, INCR, DECR, LPUSH, RPUSH) is
// appended to the log as the exact RESP array frame the client sent. The log
// is therefore a valid client stream: Replay feeds it through resp.ExtractFrame
// and applies each frame in order, typically to a command dispatcher without
// an attached persister so that nothing is logged twice.
//
// TTLs are stored as received (EX/PX are relative). Replaying a log re-arms
// every TTL relative to the time of the replay.
//
// Durability: LogCommand performs one write call per frame and, with
// Options.Fsync, an fsync before returning. A crash during a write leaves at
// most one partial frame at the end of the file, which Replay reports as
// ErrTruncated. Any other undecodable content or a frame whose replay produces
// an error reply is reported as ErrCorrupt. In both cases the frames before
// the problem stay applied and the caller decides whether to continue.
package aof
