package server

import (
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/respkv/lib/aof"
	"github.com/ValentinKolb/respkv/lib/db"
	"github.com/ValentinKolb/respkv/lib/db/engines/maple"
	dbtesting "github.com/ValentinKolb/respkv/lib/db/testing"
	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/metrics"
)

// step is one command and the debug string of its expected reply
type step struct {
	cmd  []string
	want string
}

func newTestDB(t *testing.T, clock *dbtesting.Clock) db.KVDB {
	t.Helper()
	database := maple.NewMapleDB(&maple.DBOptions{SweepInterval: -1, Now: clock.Now})
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func newTestDispatcher(t *testing.T, log CommandLogger, opts ...DispatcherOption) (*Dispatcher, *dbtesting.Clock) {
	t.Helper()
	clock := dbtesting.NewClock()
	return NewDispatcher(newTestDB(t, clock), log, opts...), clock
}

func do(d *Dispatcher, cmd ...string) string {
	return d.Dispatch(resp.NewFrame(cmd...)).String()
}

func runSteps(t *testing.T, d *Dispatcher, steps []step) {
	t.Helper()
	for _, s := range steps {
		if got := do(d, s.cmd...); got != s.want {
			t.Errorf("%v: expected %s, got %s", s.cmd, s.want, got)
		}
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name  string
		steps []step
	}{
		{"Ping", []step{
			{[]string{"PING"}, "PONG"},
			{[]string{"ping", "hello"}, `"hello"`},
			{[]string{"PING", "a", "b"}, "ERR wrong number of arguments for 'ping' command"},
		}},
		{"Echo", []step{
			{[]string{"ECHO", "hi there"}, `"hi there"`},
			{[]string{"ECHO"}, "ERR wrong number of arguments for 'echo' command"},
		}},
		{"SetGet", []step{
			{[]string{"GET", "k"}, "(nil)"},
			{[]string{"SET", "k", "v"}, "OK"},
			{[]string{"GET", "k"}, `"v"`},
			{[]string{"SET", "k", "w"}, "OK"},
			{[]string{"get", "k"}, `"w"`},
			{[]string{"GET"}, "ERR wrong number of arguments for 'get' command"},
			{[]string{"GET", "a", "b"}, "ERR wrong number of arguments for 'get' command"},
			{[]string{"SET", "k"}, "ERR wrong number of arguments for 'set' command"},
		}},
		{"SetOptions", []step{
			{[]string{"SET", "k", "v", "EX", "10"}, "OK"},
			{[]string{"SET", "k", "v", "ex", "10"}, "OK"},
			{[]string{"SET", "k", "v", "PX", "100"}, "OK"},
			{[]string{"SET", "k", "v", "EX", "abc"}, "ERR value is not an integer or out of range"},
			{[]string{"SET", "k", "v", "XX", "abc"}, "ERR value is not an integer or out of range"},
			{[]string{"SET", "k", "v", "XX", "10"}, "ERR syntax error"},
			{[]string{"SET", "k", "v", "EX"}, "ERR syntax error"},
			{[]string{"SET", "k", "v", "EX", "1", "NX"}, "ERR syntax error"},
			{[]string{"SET", "k", "v", "EX", "0"}, "ERR invalid expire time in 'set' command"},
			{[]string{"SET", "k", "v", "PX", "-5"}, "ERR invalid expire time in 'set' command"},
			{[]string{"SET", "k", "v", "EX", "9223372036854775807"}, "ERR invalid expire time in 'set' command"},
		}},
		{"Exists", []step{
			{[]string{"SET", "k1", "v"}, "OK"},
			{[]string{"EXISTS", "k1", "k2"}, "1"},
			{[]string{"EXISTS", "k1", "k1"}, "2"},
			{[]string{"EXISTS"}, "ERR wrong number of arguments for 'exists' command"},
		}},
		{"Del", []step{
			{[]string{"SET", "a", "1"}, "OK"},
			{[]string{"RPUSH", "b", "x"}, "1"},
			{[]string{"DEL", "a", "b", "c"}, "2"},
			{[]string{"DEL", "a"}, "0"},
			{[]string{"EXISTS", "a", "b"}, "0"},
		}},
		{"IncrDecr", []step{
			{[]string{"INCR", "n"}, "1"},
			{[]string{"INCR", "n"}, "2"},
			{[]string{"DECR", "n"}, "1"},
			{[]string{"DECR", "m"}, "-1"},
			{[]string{"SET", "s", "abc"}, "OK"},
			{[]string{"INCR", "s"}, "ERR value is not an integer or out of range"},
			{[]string{"SET", "max", "9223372036854775807"}, "OK"},
			{[]string{"INCR", "max"}, "ERR value is not an integer or out of range"},
			{[]string{"GET", "max"}, `"9223372036854775807"`},
			{[]string{"SET", "s", "41"}, "OK"},
			{[]string{"INCR", "s"}, "42"},
			{[]string{"GET", "s"}, `"42"`},
		}},
		{"Lists", []step{
			{[]string{"LPUSH", "l", "a"}, "1"},
			{[]string{"LPUSH", "l", "b"}, "2"},
			{[]string{"RPUSH", "l", "c"}, "3"},
			{[]string{"LRANGE", "l", "0", "2"}, `["b","a"]`},
			{[]string{"LRANGE", "l", "0", "100"}, `["b","a","c"]`},
			{[]string{"LRANGE", "l", "2", "1"}, "[]"},
			{[]string{"LRANGE", "l", "-1", "2"}, "[]"},
			{[]string{"LRANGE", "missing", "0", "1"}, "[]"},
			{[]string{"LRANGE", "l", "x", "1"}, "ERR value is not an integer or out of range"},
			{[]string{"LPUSH", "l2", "x", "y"}, "2"},
			{[]string{"RPUSH", "l2", "z", "w"}, "4"},
			{[]string{"LRANGE", "l2", "0", "4"}, `["y","x","z","w"]`},
			{[]string{"LPUSH", "l2"}, "ERR wrong number of arguments for 'lpush' command"},
		}},
		{"WrongType", []step{
			{[]string{"SET", "s", "v"}, "OK"},
			{[]string{"RPUSH", "l", "a"}, "1"},
			{[]string{"LPUSH", "s", "a"}, "WRONGTYPE Operation against a key holding the wrong kind of value"},
			{[]string{"LRANGE", "s", "0", "1"}, "WRONGTYPE Operation against a key holding the wrong kind of value"},
			{[]string{"GET", "l"}, "WRONGTYPE Operation against a key holding the wrong kind of value"},
			{[]string{"INCR", "l"}, "WRONGTYPE Operation against a key holding the wrong kind of value"},
			{[]string{"SET", "l", "v"}, "OK"},
			{[]string{"GET", "l"}, `"v"`},
		}},
		{"UnknownCommand", []step{
			{[]string{"FOO", "a", "b"}, "ERR unknown command 'FOO', with args beginning with: 'a' 'b'"},
			{[]string{"flushall"}, "ERR unknown command 'flushall', with args beginning with: "},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := newTestDispatcher(t, nil)
			runSteps(t, d, tc.steps)
		})
	}
}

func TestDispatchEmptyFrame(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	if got := d.Dispatch(resp.Frame{}).String(); got != "ERR empty command" {
		t.Errorf("expected empty command error, got %s", got)
	}
}

func TestDispatchBinaryValues(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	value := []byte("a\r\nb\x00c")

	if reply := d.Dispatch(resp.Frame{[]byte("SET"), []byte("bin"), value}); reply != resp.OK {
		t.Fatalf("SET failed: %s", reply)
	}
	reply := d.Dispatch(resp.Frame{[]byte("GET"), []byte("bin")})
	if got, ok := reply.(resp.BulkString); !ok || string(got) != string(value) {
		t.Errorf("expected %q, got %s", value, reply)
	}
}

func TestDispatchExpiry(t *testing.T) {
	d, clock := newTestDispatcher(t, nil)

	runSteps(t, d, []step{
		{[]string{"SET", "sec", "v", "EX", "10"}, "OK"},
		{[]string{"SET", "ms", "v", "PX", "1500"}, "OK"},
		{[]string{"SET", "forever", "v"}, "OK"},
	})

	clock.Advance(1499 * time.Millisecond)
	runSteps(t, d, []step{
		{[]string{"GET", "ms"}, `"v"`},
		{[]string{"EXISTS", "sec", "ms", "forever"}, "3"},
	})

	clock.Advance(time.Millisecond)
	runSteps(t, d, []step{
		{[]string{"GET", "ms"}, "(nil)"},
		{[]string{"GET", "sec"}, `"v"`},
	})

	clock.Advance(8500 * time.Millisecond)
	runSteps(t, d, []step{
		{[]string{"GET", "sec"}, "(nil)"},
		{[]string{"EXISTS", "sec", "ms", "forever"}, "1"},
		{[]string{"DEL", "sec"}, "0"},
		// an expired counter starts over
		{[]string{"SET", "n", "5", "EX", "1"}, "OK"},
	})

	clock.Advance(time.Second)
	runSteps(t, d, []step{
		{[]string{"INCR", "n"}, "1"},
	})
}

// --------------------------------------------------------------------------
// Command Log
// --------------------------------------------------------------------------

// recordingLogger keeps every logged frame, LogCommand fails with err if set
type recordingLogger struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (l *recordingLogger) LogCommand(frame resp.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.frames = append(l.frames, frame.String())
	return nil
}

func TestOnlySuccessfulMutationsAreLogged(t *testing.T) {
	log := &recordingLogger{}
	d, _ := newTestDispatcher(t, log)

	runSteps(t, d, []step{
		{[]string{"SET", "k", "v"}, "OK"},
		{[]string{"GET", "k"}, `"v"`},
		{[]string{"INCR", "k"}, "ERR value is not an integer or out of range"},
		{[]string{"set", "k", "v", "EX", "0"}, "ERR invalid expire time in 'set' command"},
		{[]string{"DEL", "k"}, "1"},
		{[]string{"EXISTS", "k"}, "0"},
		{[]string{"RPUSH", "l", "a", "b"}, "2"},
		{[]string{"LRANGE", "l", "0", "2"}, `["a","b"]`},
		{[]string{"PING"}, "PONG"},
		{[]string{"DEL", "missing"}, "0"},
	})

	// commands are logged as received (original case included)
	want := []string{
		`["SET","k","v"]`,
		`["DEL","k"]`,
		`["RPUSH","l","a","b"]`,
		`["DEL","missing"]`,
	}
	if len(log.frames) != len(want) {
		t.Fatalf("expected %d logged frames, got %d: %v", len(want), len(log.frames), log.frames)
	}
	for i := range want {
		if log.frames[i] != want[i] {
			t.Errorf("logged frame %d: expected %s, got %s", i, want[i], log.frames[i])
		}
	}
}

func TestLogFailureIsFatal(t *testing.T) {
	failure := errors.New("disk full")
	var fatalErr error

	log := &recordingLogger{err: failure}
	d, _ := newTestDispatcher(t, log, WithFatalHandler(func(err error) { fatalErr = err }))

	if got := do(d, "GET", "k"); got != "(nil)" {
		t.Errorf("expected reads to work without the log, got %s", got)
	}
	if fatalErr != nil {
		t.Fatalf("fatal handler called for a read: %v", fatalErr)
	}

	if got := do(d, "SET", "k", "v"); got != "ERR failed to persist command" {
		t.Errorf("expected persist error, got %s", got)
	}
	if !errors.Is(fatalErr, failure) {
		t.Errorf("expected fatal handler to get %v, got %v", failure, fatalErr)
	}
}

func TestLogThenReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "respkv.aof")

	persister, err := aof.Open(path, aof.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	d, _ := newTestDispatcher(t, persister)

	for _, cmd := range [][]string{
		{"SET", "a", "1"},
		{"SET", "b", "hello"},
		{"INCR", "a"},
		{"INCR", "counter"},
		{"DECR", "counter"},
		{"DECR", "counter"},
		{"LPUSH", "list", "x", "y"},
		{"RPUSH", "list", "z"},
		{"SET", "tmp", "gone"},
		{"DEL", "tmp"},
		{"SET", "ttl", "v", "EX", "100"},
		{"INCR", "b"}, // error, not logged
	} {
		d.Dispatch(resp.NewFrame(cmd...))
	}
	if err := persister.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	replayed, _ := newTestDispatcher(t, nil)
	stats, err := aof.ReplayFile(path, replayed.Dispatch)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if stats.Frames != 11 {
		t.Errorf("expected 11 replayed frames, got %d", stats.Frames)
	}

	for _, query := range [][]string{
		{"GET", "a"},
		{"GET", "b"},
		{"GET", "counter"},
		{"GET", "tmp"},
		{"GET", "ttl"},
		{"LRANGE", "list", "0", "10"},
		{"EXISTS", "a", "b", "counter", "tmp", "list", "ttl"},
	} {
		want, got := do(d, query...), do(replayed, query...)
		if want != got {
			t.Errorf("%v: expected %s after replay, got %s", query, want, got)
		}
	}
}

func TestConcurrentMutationsReplayInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "respkv.aof")

	persister, err := aof.Open(path, aof.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	d, _ := newTestDispatcher(t, persister)

	const workers, perWorker = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				do(d, "INCR", "n")
				do(d, "RPUSH", "l", strconv.Itoa(w*perWorker+i))
				do(d, "GET", "n")
			}
		}(w)
	}
	wg.Wait()
	_ = persister.Close()

	replayed, _ := newTestDispatcher(t, nil)
	if _, err := aof.ReplayFile(path, replayed.Dispatch); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if got := do(replayed, "GET", "n"); got != strconv.Quote(strconv.Itoa(workers*perWorker)) {
		t.Errorf("unexpected counter after replay: %s", got)
	}
	end := strconv.Itoa(workers * perWorker)
	if want, got := do(d, "LRANGE", "l", "0", end), do(replayed, "LRANGE", "l", "0", end); want != got {
		t.Errorf("list order differs after replay")
	}
}

func TestDispatchMetrics(t *testing.T) {
	registry := metrics.NewRegistry()
	d, _ := newTestDispatcher(t, nil, WithMetrics(registry))

	do(d, "SET", "k", "v")
	do(d, "get", "k")
	do(d, "GET", "k")
	do(d, "INCR", "k")
	do(d, "GET")
	do(d, "NOPE")

	tests := []struct {
		command        string
		calls, errored uint64
	}{
		{"set", 1, 0},
		{"get", 3, 1},
		{"incr", 1, 1},
		{"unknown", 1, 1},
		{"del", 0, 0},
	}
	for _, tc := range tests {
		if got := registry.CommandCount(tc.command); got != tc.calls {
			t.Errorf("%s: expected %d calls, got %d", tc.command, tc.calls, got)
		}
		if got := registry.ErrorCount(tc.command); got != tc.errored {
			t.Errorf("%s: expected %d errors, got %d", tc.command, tc.errored, got)
		}
	}
}
