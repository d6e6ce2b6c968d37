package transport

import (
	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming command frames.
// This function is called by a server transport layer for every complete frame
// received on a connection, in the order the frames arrived. It returns the
// reply to send back.
type ServerHandleFunc func(frame resp.Frame) (reply resp.Value)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a frame is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving connections.
	// It returns nil after Close was called.
	Listen(config common.ServerConfig) error
	// Close stops accepting connections and closes all open connections
	Close() error
}

// ConnectionObserver is implemented by transports that report the lifecycle of
// their connections, e.g. for connection metrics
type ConnectionObserver interface {
	// OnConnection registers callbacks for accepted and closed connections and
	// for connections closed because of a protocol error.
	// Any of them may be nil.
	OnConnection(opened, closed, protocolError func())
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends frames in one batch (pipelining) and returns one reply per frame
	// in the same order. An error is returned for I/O failures only, error
	// replies of the server are returned as resp.Error values.
	Send(frames ...resp.Frame) (replies []resp.Value, err error)
	// Close closes the transport connection
	Close() error
}
