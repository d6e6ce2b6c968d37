package server

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/respkv/lib/db"
	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/ValentinKolb/respkv/rpc/metrics"
)

// CommandLogger receives every committed mutating command, e.g. *aof.Persister
type CommandLogger interface {
	LogCommand(frame resp.Frame) error
}

// Dispatcher executes command frames against a store and returns typed replies.
// Command level failures are always returned as resp.Error replies.
//
// With a CommandLogger attached, the store mutation of a command and its log
// append form one unit: mutating commands hold the write lock across both,
// reads hold the read lock. Without a logger no dispatcher lock is taken and
// only the per-key atomicity of the store applies.
type Dispatcher struct {
	db      db.KVDB
	log     CommandLogger
	mu      sync.RWMutex
	metrics *metrics.Registry
	fatal   func(err error)
}

// DispatcherOption configures optional parts of a Dispatcher
type DispatcherOption func(d *Dispatcher)

// WithMetrics records every dispatched command in registry
func WithMetrics(registry *metrics.Registry) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = registry
	}
}

// WithFatalHandler replaces the handler that is called when a command could
// not be written to the log. The default handler logs the error and exits.
func WithFatalHandler(fatal func(err error)) DispatcherOption {
	return func(d *Dispatcher) {
		d.fatal = fatal
	}
}

// NewDispatcher creates a dispatcher for database. log may be nil, in which
// case nothing is logged (e.g. while replaying a log).
func NewDispatcher(database db.KVDB, log CommandLogger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		db:  database,
		log: log,
		fatal: func(err error) {
			Logger.Errorf("failed to persist command, durability can not be guaranteed: %v", err)
			os.Exit(1)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes one command frame. The command name is case-insensitive.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (d *Dispatcher) Dispatch(frame resp.Frame) resp.Value {
	if len(frame) == 0 {
		return resp.Error(msgEmptyCommand)
	}

	start := time.Now()
	name := strings.ToUpper(frame.Name())

	spec, ok := commandTable[name]
	if !ok {
		reply := unknownCommand(frame)
		d.metrics.ObserveCommand("unknown", true, time.Since(start))
		return reply
	}

	args := frame.Args()
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		d.metrics.ObserveCommand(name, true, time.Since(start))
		return wrongArity(name)
	}

	var reply resp.Value
	switch {
	case d.log == nil:
		reply = spec.handler(d, args)
	case spec.mutating:
		reply = d.executeAndLog(spec, frame)
	default:
		d.mu.RLock()
		reply = spec.handler(d, args)
		d.mu.RUnlock()
	}

	d.metrics.ObserveCommand(name, resp.IsError(reply), time.Since(start))
	return reply
}

// executeAndLog runs a mutating command and appends it to the log if it succeeded
func (d *Dispatcher) executeAndLog(spec commandSpec, frame resp.Frame) resp.Value {
	d.mu.Lock()
	defer d.mu.Unlock()

	reply := spec.handler(d, frame.Args())
	if resp.IsError(reply) {
		return reply
	}

	start := time.Now()
	if err := d.log.LogCommand(frame); err != nil {
		d.fatal(err)
		return resp.Error("ERR failed to persist command")
	}
	d.metrics.ObserveLogWrite(time.Since(start))

	return reply
}
