// Package unix implements a transport layer for the RESP server and client
// using Unix domain sockets, for processes running on the same machine.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. A stale socket file at the
//     endpoint path is removed before listening.
//
// The default server read buffer size is 64 KB.
package unix
