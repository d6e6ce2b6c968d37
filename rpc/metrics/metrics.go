package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("metrics")

// Registry holds the metrics of one server instance.
// A nil *Registry is valid and records nothing.
type Registry struct {
	set *vm.Set
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{set: vm.NewSet()}
}

// --------------------------------------------------------------------------
// Command Metrics
// --------------------------------------------------------------------------

// ObserveCommand records one dispatched command. command must be a known
// command name (or "unknown") to keep the label cardinality bounded.
func (r *Registry) ObserveCommand(command string, isError bool, took time.Duration) {
	if r == nil {
		return
	}
	command = strings.ToLower(command)

	r.set.GetOrCreateCounter(fmt.Sprintf(`respkv_commands_total{command=%q}`, command)).Inc()
	if isError {
		r.set.GetOrCreateCounter(fmt.Sprintf(`respkv_command_errors_total{command=%q}`, command)).Inc()
	}
	r.set.GetOrCreateHistogram(fmt.Sprintf(`respkv_command_duration_seconds{command=%q}`, command)).Update(took.Seconds())
}

// CommandCount returns the number of recorded calls of command
func (r *Registry) CommandCount(command string) uint64 {
	if r == nil {
		return 0
	}
	return r.set.GetOrCreateCounter(fmt.Sprintf(`respkv_commands_total{command=%q}`, strings.ToLower(command))).Get()
}

// ErrorCount returns the number of recorded error replies of command
func (r *Registry) ErrorCount(command string) uint64 {
	if r == nil {
		return 0
	}
	return r.set.GetOrCreateCounter(fmt.Sprintf(`respkv_command_errors_total{command=%q}`, strings.ToLower(command))).Get()
}

// --------------------------------------------------------------------------
// Connection Metrics
// --------------------------------------------------------------------------

// ConnectionOpened records an accepted client connection
func (r *Registry) ConnectionOpened() {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter("respkv_connections_total").Inc()
	r.set.GetOrCreateCounter("respkv_connections_active").Inc()
}

// ConnectionClosed records a closed client connection
func (r *Registry) ConnectionClosed() {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter("respkv_connections_active").Dec()
}

// ActiveConnections returns the number of open client connections
func (r *Registry) ActiveConnections() uint64 {
	if r == nil {
		return 0
	}
	return r.set.GetOrCreateCounter("respkv_connections_active").Get()
}

// ProtocolError records a connection closed because of malformed input
func (r *Registry) ProtocolError() {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter("respkv_protocol_errors_total").Inc()
}

// --------------------------------------------------------------------------
// Persistence Metrics
// --------------------------------------------------------------------------

// ObserveLogWrite records one append to the command log
func (r *Registry) ObserveLogWrite(took time.Duration) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter("respkv_aof_writes_total").Inc()
	r.set.GetOrCreateHistogram("respkv_aof_write_duration_seconds").Update(took.Seconds())
}

// ObserveReplay records the outcome of the startup replay
func (r *Registry) ObserveReplay(frames int, took time.Duration) {
	if r == nil {
		return
	}
	r.set.GetOrCreateCounter("respkv_aof_replayed_commands_total").Add(frames)
	r.set.GetOrCreateHistogram("respkv_aof_replay_duration_seconds").Update(took.Seconds())
}

// --------------------------------------------------------------------------
// Gauges and Export
// --------------------------------------------------------------------------

// RegisterGauge registers a gauge whose value is computed by f on every scrape.
// Registering the same name twice keeps the first function.
func (r *Registry) RegisterGauge(name string, f func() float64) {
	if r == nil {
		return
	}
	r.set.GetOrCreateGauge(name, f)
}

// WritePrometheus writes all metrics of the registry plus the process
// metrics in the Prometheus text format to w.
func (r *Registry) WritePrometheus(w io.Writer) {
	if r != nil {
		r.set.WritePrometheus(w)
	}
	vm.WritePrometheus(w, true)
}
