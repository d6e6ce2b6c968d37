package metrics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.ObserveCommand("GET", false, time.Millisecond)
	r.ObserveCommand("get", true, time.Millisecond)
	r.ObserveCommand("SET", false, time.Millisecond)

	if got := r.CommandCount("get"); got != 2 {
		t.Errorf("expected 2 get commands, got %d", got)
	}
	if got := r.ErrorCount("GET"); got != 1 {
		t.Errorf("expected 1 get error, got %d", got)
	}
	if got := r.ErrorCount("set"); got != 0 {
		t.Errorf("expected 0 set errors, got %d", got)
	}

	r.ConnectionOpened()
	r.ConnectionOpened()
	r.ConnectionClosed()
	if got := r.ActiveConnections(); got != 1 {
		t.Errorf("expected 1 active connection, got %d", got)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// none of these may panic
	r.ObserveCommand("get", false, time.Millisecond)
	r.ConnectionOpened()
	r.ConnectionClosed()
	r.ProtocolError()
	r.ObserveLogWrite(time.Millisecond)
	r.ObserveReplay(1, time.Millisecond)
	r.RegisterGauge("x", func() float64 { return 1 })

	if r.CommandCount("get") != 0 {
		t.Error("nil registry should report zero")
	}
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry()
	r.ObserveCommand("incr", false, time.Millisecond)
	r.RegisterGauge("respkv_keys", func() float64 { return 42 })

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()

	for _, want := range []string{
		`respkv_commands_total{command="incr"} 1`,
		`respkv_keys 42`,
		`respkv_command_duration_seconds_bucket{command="incr"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestAdminServer(t *testing.T) {
	r := NewRegistry()
	r.ObserveCommand("ping", false, time.Millisecond)

	var unhealthy atomic.Bool
	admin, err := StartAdminServer("127.0.0.1:0", r, func() error {
		if unhealthy.Load() {
			return errors.New("not ready")
		}
		return nil
	}, true)
	if err != nil {
		t.Fatalf("failed to start admin server: %v", err)
	}
	defer admin.Close(context.Background())

	get := func(path string) (int, string) {
		res, err := http.Get("http://" + admin.Addr() + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return res.StatusCode, string(body)
	}

	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, `respkv_commands_total{command="ping"} 1`) {
		t.Errorf("unexpected /metrics response %d: %s", code, body)
	}

	if code, body := get("/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Errorf("unexpected /healthz response %d: %s", code, body)
	}

	unhealthy.Store(true)
	if code, _ := get("/healthz"); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for unhealthy server, got %d", code)
	}

	if code, _ := get("/nope"); code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown route, got %d", code)
	}
}
