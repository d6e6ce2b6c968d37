// Package transport defines the interfaces and abstractions for the network
// side of the RESP server. It provides a common contract that all transport
// implementations must fulfill, so the server does not depend on the socket type.
//
// Key Components:
//
//   - IRPCServerTransport: Interface for server-side transports that accept
//     connections, extract command frames and pass them to the registered handler.
//
//   - IRPCClientTransport: Interface for client-side transports that send
//     pipelined command frames and read the replies.
//
//   - ServerHandleFunc: Function type for frame handling callbacks.
//
//   - ConnectionObserver: Optional interface for transports reporting the
//     lifecycle of their connections.
package transport
