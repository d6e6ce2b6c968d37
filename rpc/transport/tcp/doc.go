// Package tcp implements the TCP socket transport of the RESP server and client.
// It provides concrete implementations of the base package's connector interfaces.
//
// Accepted and dialed connections get TCP_NODELAY (replies are already batched
// per read) and keep-alive with a 30 second period.
//
// The default server read buffer size is 64 KB.
package tcp
