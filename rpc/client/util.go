package client

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/transport"
)

// ErrEmptyCommand is returned for a frame without a command name.
// The server never answers an empty frame, so it is not sent.
var ErrEmptyCommand = errors.New("empty command")

// ServerError is an error reply of the server, e.g. "ERR syntax error"
type ServerError string

func (e ServerError) Error() string {
	return string(e)
}

// invokeRPCRequest is a helper function used by all typed client methods to send one frame.
// It returns the reply, an error reply is returned as ServerError.
func invokeRPCRequest(frame resp.Frame, transport transport.IRPCClientTransport) (resp.Value, error) {
	replies, err := transport.Send(frame)
	if err != nil {
		return nil, err
	}
	if len(replies) != 1 {
		return nil, fmt.Errorf("expected 1 reply for %s, got %d", frame.Name(), len(replies))
	}

	// Check if the response is an error response
	if e, ok := replies[0].(resp.Error); ok {
		return nil, ServerError(e)
	}

	return replies[0], nil
}

// --------------------------------------------------------------------------
// Reply conversion
// --------------------------------------------------------------------------

func unexpectedReply(cmd string, reply resp.Value) error {
	return fmt.Errorf("unexpected reply to %s: %T %s", cmd, reply, reply)
}

func asInteger(cmd string, reply resp.Value) (int64, error) {
	n, ok := reply.(resp.Integer)
	if !ok {
		return 0, unexpectedReply(cmd, reply)
	}
	return int64(n), nil
}

func asStatus(cmd string, reply resp.Value, want resp.SimpleString) error {
	if s, ok := reply.(resp.SimpleString); !ok || s != want {
		return unexpectedReply(cmd, reply)
	}
	return nil
}

// asBulk converts a bulk string reply, the null bulk string reports false
func asBulk(cmd string, reply resp.Value) ([]byte, bool, error) {
	b, ok := reply.(resp.BulkString)
	if !ok {
		return nil, false, unexpectedReply(cmd, reply)
	}
	if b == nil {
		return nil, false, nil
	}
	return []byte(b), true, nil
}
