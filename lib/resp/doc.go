// Package resp implements the RESP wire protocol used by respkv clients,
// the server and the append-only log.
//
// The package focuses on:
//   - The closed set of typed values (SimpleString, Error, Integer, BulkString, Array)
//     with their wire encoding and a human-readable debug form
//   - A streaming frame decoder that extracts command frames from a growing buffer
//   - A blocking reply reader for clients
//
// Key Components:
//
//   - Value: interface implemented by all wire types. BulkString is binary-safe
//     and nil represents the null bulk string ($-1). Array nil is the null array (*-1).
//
//   - Frame: a decoded command (array of bulk strings). Frames are encoded with
//     AppendFrame, which is also the record format of the append-only log.
//
//   - ExtractFrame: decodes at most one frame from the start of a buffer and
//     reports how many bytes it consumed. A partial frame consumes nothing,
//     so bytes may arrive in chunks of any size.
//
// Malformed Input:
//
//	Malformed headers (bad type byte, non-numeric or negative length, missing
//	CRLF after a payload, limits exceeded) are reported as errors wrapping
//	ErrProtocol. They are never treated as incomplete input; the server answers
//	with a protocol error and closes the connection.
package resp
