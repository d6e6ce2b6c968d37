package server

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/lib/aof"
	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/client"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/transport/unix"
)

// runningServer is a server started by startTestServer
type runningServer struct {
	server *RPCServer
	client *client.RPCClient
	done   chan error
}

// stop closes the client and the server and returns the result of Serve
func (r *runningServer) stop(t *testing.T) {
	t.Helper()
	_ = r.client.Close()
	_ = r.server.Close()
	select {
	case err := <-r.done:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

// startTestServer serves config on a unix socket in dir and connects a client
func startTestServer(t *testing.T, dir string, config common.ServerConfig) *runningServer {
	t.Helper()

	config.Endpoint = filepath.Join(dir, "respkv.sock")
	config.Transport = common.TransportUnix
	config.LogLevel = "error"

	r := &runningServer{
		server: NewRPCServer(config, unix.NewUnixDefaultServerTransport()),
		done:   make(chan error, 1),
	}
	go func() {
		r.done <- r.server.Serve()
	}()

	clientConfig := common.ClientConfig{Endpoint: config.Endpoint, Transport: common.TransportUnix, TimeoutSecond: 5}
	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := client.NewRPCClient(clientConfig, unix.NewUnixClientTransport())
		if err == nil {
			r.client = c
			return r
		}

		select {
		case serveErr := <-r.done:
			t.Fatalf("server failed to start: %v", serveErr)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerEndToEnd(t *testing.T) {
	r := startTestServer(t, t.TempDir(), common.ServerConfig{})
	defer r.stop(t)
	c := r.client

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if echo, err := c.Echo([]byte("hello")); err != nil || string(echo) != "hello" {
		t.Errorf("Echo returned %q, %v", echo, err)
	}

	if err := c.Set("k", []byte("v\r\n")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, ok, err := c.Get("k"); err != nil || !ok || string(value) != "v\r\n" {
		t.Errorf("Get returned %q, %v, %v", value, ok, err)
	}
	if _, ok, err := c.Get("missing"); err != nil || ok {
		t.Errorf("expected missing key, got %v, %v", ok, err)
	}
	if n, err := c.Exists("k", "missing"); err != nil || n != 1 {
		t.Errorf("Exists returned %d, %v", n, err)
	}

	if n, err := c.Incr("counter"); err != nil || n != 1 {
		t.Errorf("Incr returned %d, %v", n, err)
	}
	if n, err := c.Decr("counter"); err != nil || n != 0 {
		t.Errorf("Decr returned %d, %v", n, err)
	}

	if _, err := c.LPush("l", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.LPush("l", []byte("b")); err != nil {
		t.Fatal(err)
	}
	if n, err := c.RPush("l", []byte("c")); err != nil || n != 3 {
		t.Errorf("RPush returned %d, %v", n, err)
	}
	items, err := c.LRange("l", 0, 2)
	if err != nil || len(items) != 2 || string(items[0]) != "b" || string(items[1]) != "a" {
		t.Errorf("LRange returned %q, %v", items, err)
	}

	// error replies
	var serverErr client.ServerError
	if _, err := c.Incr("l"); !errors.As(err, &serverErr) || serverErr != "WRONGTYPE Operation against a key holding the wrong kind of value" {
		t.Errorf("expected WRONGTYPE error, got %v", err)
	}
	reply, err := c.Do("GET")
	if err != nil || reply.String() != "ERR wrong number of arguments for 'get' command" {
		t.Errorf("unexpected reply %v (%v)", reply, err)
	}

	if n, err := c.Del("k", "l", "missing"); err != nil || n != 2 {
		t.Errorf("Del returned %d, %v", n, err)
	}

	// pipelining
	replies, err := c.Pipeline(resp.NewFrame("SET", "p", "1"), resp.NewFrame("INCR", "p"), resp.NewFrame("GET", "p"))
	if err != nil || len(replies) != 3 || replies[2].String() != `"2"` {
		t.Errorf("unexpected pipeline replies %v (%v)", replies, err)
	}

	if got := r.server.Metrics().CommandCount("incr"); got != 3 {
		t.Errorf("expected 3 recorded INCR commands, got %d", got)
	}
}

func TestServerExpiry(t *testing.T) {
	r := startTestServer(t, t.TempDir(), common.ServerConfig{SweepIntervalMillis: 10})
	defer r.stop(t)

	if err := r.client.SetEX("k", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("SetEX failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, ok, err := r.client.Get("k"); err != nil || ok {
		t.Errorf("expected key to be expired, got %v, %v", ok, err)
	}
}

func TestServerPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	config := common.ServerConfig{
		AOFEnabled: true,
		AOFPath:    filepath.Join(dir, "respkv.aof"),
	}

	r := startTestServer(t, dir, config)
	_ = r.client.Set("a", []byte("1"))
	_, _ = r.client.Incr("a")
	_, _ = r.client.RPush("l", []byte("x"), []byte("y"))
	_ = r.client.Set("gone", []byte("v"))
	_, _ = r.client.Del("gone")
	_, _ = r.client.Incr("l") // error, not logged
	r.stop(t)

	r = startTestServer(t, dir, config)
	defer r.stop(t)

	if value, _, err := r.client.Get("a"); err != nil || string(value) != "2" {
		t.Errorf("expected a=2 after restart, got %q (%v)", value, err)
	}
	if items, err := r.client.LRange("l", 0, 10); err != nil || len(items) != 2 {
		t.Errorf("expected list of 2 items after restart, got %q (%v)", items, err)
	}
	if n, err := r.client.Exists("gone"); err != nil || n != 0 {
		t.Errorf("expected deleted key to stay deleted, got %d (%v)", n, err)
	}
}

func TestServerCorruptLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "respkv.aof")

	valid := resp.EncodeFrame(resp.NewFrame("SET", "a", "1"))
	if err := os.WriteFile(path, append(append([]byte{}, valid...), "garbage"...), 0644); err != nil {
		t.Fatal(err)
	}

	// refuses to start by default
	s := NewRPCServer(common.ServerConfig{
		Endpoint:   filepath.Join(dir, "respkv.sock"),
		Transport:  common.TransportUnix,
		AOFEnabled: true,
		AOFPath:    path,
		LogLevel:   "error",
	}, unix.NewUnixDefaultServerTransport())
	if err := s.Serve(); !errors.Is(err, aof.ErrCorrupt) {
		t.Fatalf("expected corruption error, got %v", err)
	}

	// starts with the valid prefix if corruption is ignored
	r := startTestServer(t, dir, common.ServerConfig{
		AOFEnabled:          true,
		AOFPath:             path,
		AOFIgnoreCorruption: true,
	})
	defer r.stop(t)

	if value, _, err := r.client.Get("a"); err != nil || string(value) != "1" {
		t.Errorf("expected replayed prefix, got %q (%v)", value, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(len(valid)) {
		t.Errorf("expected log to be truncated to %d bytes, got %d", len(valid), info.Size())
	}

	// the cut records are kept next to the log
	tail, err := os.ReadFile(path + ".corrupt-" + strconv.Itoa(len(valid)))
	if err != nil || string(tail) != "garbage" {
		t.Errorf("expected corrupt tail to be saved, got %q (%v)", tail, err)
	}

	// new commands are appended after the valid prefix
	if err := r.client.Set("b", []byte("2")); err != nil {
		t.Fatal(err)
	}
	if _, err := aof.ReplayFile(path, func(resp.Frame) resp.Value { return resp.OK }); err != nil {
		t.Errorf("log is not replayable after recovery: %v", err)
	}
}

func TestServerInvalidConfig(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{Transport: common.TransportTCP}, unix.NewUnixDefaultServerTransport())
	if err := s.Serve(); err == nil {
		t.Error("expected error for missing endpoint")
	}
}
