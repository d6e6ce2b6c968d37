package base

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// DefaultReadBufferSize is the number of bytes read per read call if not configured otherwise
	DefaultReadBufferSize = 16 * 1024
	writeBufferSize       = 16 * 1024
	acceptRetryDelay      = 5 * time.Millisecond
	errorDrainTimeout     = time.Second // max time to discard input after a protocol error
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	bufferPool *sync.Pool
	bufferSize int

	// connection lifecycle
	mu         sync.Mutex // protects listener, closing and wg.Add
	listener   net.Listener
	closing    atomic.Bool
	conns      *xsync.MapOf[uint64, net.Conn]
	nextConnID atomic.Uint64
	wg         sync.WaitGroup

	// optional observers
	onOpened, onClosed, onProtocolError func()
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport. bufferSize is the
// number of bytes read per read call, config.ReadBufferSize overrides it if set.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	if bufferSize <= 0 {
		bufferSize = DefaultReadBufferSize
	}

	t := &serverTransport{
		connector:  connector,
		bufferSize: bufferSize,
		conns:      xsync.NewMapOf[uint64, net.Conn](),
	}
	t.bufferPool = &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, t.bufferSize)
			return &buf
		},
	}
	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) OnConnection(opened, closed, protocolError func()) {
	t.onOpened = opened
	t.onClosed = closed
	t.onProtocolError = protocolError
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	t.config = config
	if config.ReadBufferSize > 0 {
		t.bufferSize = config.ReadBufferSize
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	if t.closing.Load() {
		t.mu.Unlock()
		return listener.Close()
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s (read buffer %d bytes)",
		t.connector.GetName(), listener.Addr(), t.bufferSize)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closing.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		t.mu.Lock()
		if t.closing.Load() {
			t.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		id := t.nextConnID.Add(1)
		t.conns.Store(id, conn)
		t.wg.Add(1)
		t.mu.Unlock()

		// Handle the connection in a goroutine
		go t.handleConnection(id, conn)
	}
}

// Close stops accepting, closes all open connections and waits until their
// handlers have returned. No handler call is running after Close returns.
func (t *serverTransport) Close() error {
	t.mu.Lock()
	if t.closing.Swap(true) {
		t.mu.Unlock()
		return nil
	}
	listener := t.listener
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	t.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	t.wg.Wait()

	Logger.Infof("%s server closed", t.connector.GetName())
	return err
}

// Addr returns the address the transport listens on, nil if it is not listening
func (t *serverTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads command frames from one connection until it is closed.
// Frames are handled strictly in order and replies are written in the same order.
func (t *serverTransport) handleConnection(id uint64, conn net.Conn) {
	defer t.wg.Done()
	defer func() {
		_ = conn.Close()
		t.conns.Delete(id)
		notify(t.onClosed)
	}()
	notify(t.onOpened)

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
	}

	// Timeout in seconds
	timeout := t.config.Timeout()

	var (
		writer  = bufio.NewWriterSize(conn, writeBufferSize)
		pending []byte // bytes received but not yet consumed as a frame
		out     []byte // reused reply encode buffer
	)

	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		// Read into a pooled scratch buffer and append to the connection buffer
		scratch := t.bufferPool.Get().(*[]byte)
		n, readErr := conn.Read(*scratch)
		pending = append(pending, (*scratch)[:n]...)
		t.bufferPool.Put(scratch)

		if n > 0 {
			var protoErr error
			pending, out, protoErr = t.handleFrames(pending, out, writer)

			if protoErr != nil {
				notify(t.onProtocolError)
				Logger.Warningf("Closing connection from %s: %v", conn.RemoteAddr(), protoErr)
				reply := resp.Error("ERR Protocol error: " + strings.TrimPrefix(protoErr.Error(), resp.ErrProtocol.Error()+": "))
				_, _ = writer.Write(resp.Encode(reply))
				if err := writer.Flush(); err == nil {
					closeAfterError(conn)
				}
				return
			}

			// one flush per read batch
			if err := writer.Flush(); err != nil {
				Logger.Errorf("Failed to write response: %v", err)
				return
			}
		}

		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				Logger.Debugf("Connection closed by client %s", conn.RemoteAddr())
			case t.closing.Load():
				Logger.Debugf("Connection from %s closed by server shutdown", conn.RemoteAddr())
			case errors.Is(readErr, os.ErrDeadlineExceeded):
				Logger.Infof("Closing idle connection from %s", conn.RemoteAddr())
			default:
				Logger.Errorf("Error reading from %s: %v", conn.RemoteAddr(), readErr)
			}
			return
		}
	}
}

// handleFrames dispatches every complete frame in buf and buffers the replies in w.
// It returns the unconsumed rest of buf (moved to the front of buf).
func (t *serverTransport) handleFrames(buf, out []byte, w *bufio.Writer) ([]byte, []byte, error) {
	rest := buf
	for {
		frame, consumed, err := resp.ExtractFrame(rest)
		if err != nil {
			return buf[:0], out, err
		}
		if consumed == 0 {
			break
		}
		rest = rest[consumed:]

		// an empty array carries no command and gets no reply
		if len(frame) == 0 {
			continue
		}

		out = t.handler(frame).AppendWire(out[:0])
		// write errors are sticky, the caller sees them on Flush
		if _, err := w.Write(out); err != nil {
			return buf[:0], out, nil
		}
	}

	n := copy(buf, rest)
	return buf[:n], out, nil
}

// closeAfterError half-closes conn and discards unread input, so the client
// reads the error reply followed by EOF instead of a connection reset.
// The deferred Close of the connection handler releases the socket.
func closeAfterError(conn net.Conn) {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	if err := conn.SetReadDeadline(time.Now().Add(errorDrainTimeout)); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, conn)
}

func notify(f func()) {
	if f != nil {
		f()
	}
}
