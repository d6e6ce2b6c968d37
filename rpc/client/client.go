package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/transport"
)

// NewRPCClient creates a new RESP client.
// The function takes a config and a transport as parameters and connects the transport.
func NewRPCClient(config common.ClientConfig, transport transport.IRPCClientTransport) (*RPCClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RPCClient{
		config:    config,
		transport: transport,
	}, nil
}

// RPCClient offers typed methods for all commands of the server.
// Error replies are returned as ServerError, I/O failures as wrapped errors.
type RPCClient struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
}

// --------------------------------------------------------------------------
// Raw Access
// --------------------------------------------------------------------------

// Do sends one command and returns the raw reply. Error replies are returned
// as resp.Error values and not as error.
func (c *RPCClient) Do(args ...string) (resp.Value, error) {
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	replies, err := c.transport.Send(resp.NewFrame(args...))
	if err != nil {
		return nil, err
	}
	return replies[0], nil
}

// Pipeline sends all frames at once and returns one raw reply per frame
func (c *RPCClient) Pipeline(frames ...resp.Frame) ([]resp.Value, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	for i, f := range frames {
		if len(f) == 0 {
			return nil, fmt.Errorf("frame %d: %w", i, ErrEmptyCommand)
		}
	}
	return c.transport.Send(frames...)
}

// Close closes the connection
func (c *RPCClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func (c *RPCClient) Ping() error {
	reply, err := invokeRPCRequest(resp.NewFrame("PING"), c.transport)
	if err != nil {
		return err
	}
	return asStatus("PING", reply, resp.Pong)
}

func (c *RPCClient) Echo(message []byte) ([]byte, error) {
	reply, err := invokeRPCRequest(resp.Frame{[]byte("ECHO"), message}, c.transport)
	if err != nil {
		return nil, err
	}
	value, _, err := asBulk("ECHO", reply)
	return value, err
}

// Get returns the value of key, loaded is false if the key does not exist
func (c *RPCClient) Get(key string) (value []byte, loaded bool, err error) {
	reply, err := invokeRPCRequest(resp.Frame{[]byte("GET"), []byte(key)}, c.transport)
	if err != nil {
		return nil, false, err
	}
	return asBulk("GET", reply)
}

func (c *RPCClient) Set(key string, value []byte) error {
	reply, err := invokeRPCRequest(resp.Frame{[]byte("SET"), []byte(key), value}, c.transport)
	if err != nil {
		return err
	}
	return asStatus("SET", reply, resp.OK)
}

// SetEX stores value under key for ttl. The ttl is sent in milliseconds,
// a remainder below one millisecond is rounded up. A ttl <= 0 is rejected.
func (c *RPCClient) SetEX(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s for SET", ttl)
	}
	millis := ttl / time.Millisecond
	if ttl%time.Millisecond != 0 {
		millis++
	}
	frame := resp.Frame{
		[]byte("SET"), []byte(key), value,
		[]byte("PX"), []byte(strconv.FormatInt(int64(millis), 10)),
	}
	reply, err := invokeRPCRequest(frame, c.transport)
	if err != nil {
		return err
	}
	return asStatus("SET", reply, resp.OK)
}

// Del deletes keys and returns the number of deleted keys
func (c *RPCClient) Del(keys ...string) (int64, error) {
	return c.integerCommand("DEL", keys...)
}

// Exists returns the number of keys that exist (a key given twice counts twice)
func (c *RPCClient) Exists(keys ...string) (int64, error) {
	return c.integerCommand("EXISTS", keys...)
}

func (c *RPCClient) Incr(key string) (int64, error) {
	return c.integerCommand("INCR", key)
}

func (c *RPCClient) Decr(key string) (int64, error) {
	return c.integerCommand("DECR", key)
}

// LPush prepends items to the list at key and returns the new length
func (c *RPCClient) LPush(key string, items ...[]byte) (int64, error) {
	reply, err := invokeRPCRequest(append(resp.Frame{[]byte("LPUSH"), []byte(key)}, items...), c.transport)
	if err != nil {
		return 0, err
	}
	return asInteger("LPUSH", reply)
}

// RPush appends items to the list at key and returns the new length
func (c *RPCClient) RPush(key string, items ...[]byte) (int64, error) {
	reply, err := invokeRPCRequest(append(resp.Frame{[]byte("RPUSH"), []byte(key)}, items...), c.transport)
	if err != nil {
		return 0, err
	}
	return asInteger("RPUSH", reply)
}

// LRange returns stop-start items of the list at key starting at start
func (c *RPCClient) LRange(key string, start, stop int) ([][]byte, error) {
	reply, err := invokeRPCRequest(resp.NewFrame("LRANGE", key, strconv.Itoa(start), strconv.Itoa(stop)), c.transport)
	if err != nil {
		return nil, err
	}

	arr, ok := reply.(resp.Array)
	if !ok {
		return nil, unexpectedReply("LRANGE", reply)
	}
	items := make([][]byte, 0, len(arr))
	for _, v := range arr {
		item, _, err := asBulk("LRANGE", v)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *RPCClient) integerCommand(cmd string, keys ...string) (int64, error) {
	reply, err := invokeRPCRequest(resp.NewFrame(append([]string{cmd}, keys...)...), c.transport)
	if err != nil {
		return 0, err
	}
	return asInteger(cmd, reply)
}
