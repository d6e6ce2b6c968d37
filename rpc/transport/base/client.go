package base

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements a RESP client over a single connection,
// independent of the specific transport medium (unix, tcp, etc.).
// Requests are serialized, a batch of frames is pipelined.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	mu     sync.Mutex // Protects the connection and the buffers
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	buf    []byte // reused encode buffer
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Store the config
	t.config = config

	if err := t.reconnect(); err != nil {
		return err
	}

	Logger.Debugf("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(frames ...resp.Frame) ([]resp.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// a broken connection is restored lazily, requests are never retried
	// since commands like INCR are not idempotent
	if t.conn == nil {
		if err := t.reconnect(); err != nil {
			return nil, err
		}
	}

	if timeout := t.config.Timeout(); timeout > 0 {
		if err := t.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			t.closeConnection()
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	// Write all frames in one batch
	t.buf = t.buf[:0]
	for _, frame := range frames {
		t.buf = resp.AppendFrame(t.buf, frame)
	}
	if _, err := t.writer.Write(t.buf); err != nil {
		t.closeConnection()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		t.closeConnection()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	// Read one reply per frame
	replies := make([]resp.Value, 0, len(frames))
	for range frames {
		reply, err := resp.ReadValue(t.reader)
		if err != nil {
			t.closeConnection()
			return replies, fmt.Errorf("failed to read reply %d/%d: %w", len(replies)+1, len(frames), err)
		}
		replies = append(replies, reply)
	}

	return replies, nil
}

func (t *clientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeConnection()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// reconnect establishes or restores the connection to the endpoint.
// The caller must hold t.mu.
func (t *clientTransport) reconnect() error {
	t.closeConnection()

	conn, err := t.connector.Connect(t.config.Endpoint, t.config.Timeout())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.config.Endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", t.config.Endpoint, err)
	}

	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.writer = bufio.NewWriter(conn)
	return nil
}

// closeConnection closes the connection if there is one. The caller must hold t.mu.
func (t *clientTransport) closeConnection() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	t.writer = nil
	return err
}
