package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/respkv/lib/aof"
	"github.com/ValentinKolb/respkv/lib/db"
	"github.com/ValentinKolb/respkv/lib/db/engines/maple"
	"github.com/ValentinKolb/respkv/rpc/common"
	"github.com/ValentinKolb/respkv/rpc/metrics"
	"github.com/ValentinKolb/respkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// adminShutdownTimeout bounds the graceful shutdown of the admin HTTP server
const adminShutdownTimeout = 3 * time.Second

// NewRPCServer creates a new RESP server.
// It takes a config and a transport as parameters. Nothing is started before Serve.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPDefaultServerTransport(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(config common.ServerConfig, transport transport.IRPCServerTransport) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:    config,
		transport: transport,
		metrics:   metrics.NewRegistry(),
		done:      make(chan struct{}),
	}
}

// RPCServer ties the store, the command log, the dispatcher and the transport together
type RPCServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	metrics   *metrics.Registry

	db         db.KVDB
	persister  *aof.Persister
	dispatcher *Dispatcher
	admin      *metrics.AdminServer

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Serve initializes the store (replaying the command log if enabled) and starts
// the transport layer. It blocks until the server is closed, either by Close
// or by SIGINT / SIGTERM.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.Close()
		return err
	}

	// Shut down on signals
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			Logger.Infof("received %s, shutting down", sig)
			_ = s.Close()
		case <-s.done:
		}
	}()

	listenErr := s.transport.Listen(s.config)
	closeErr := s.Close()
	if listenErr != nil {
		return listenErr
	}
	return closeErr
}

// Close stops the server: first the transport (no command runs after it
// returned), then the store and the command log and last the admin endpoint.
// Calling Close more than once is safe.
func (s *RPCServer) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		defer close(s.done)

		var errs []error
		if err := s.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close store: %w", err))
			}
		}
		if s.persister != nil {
			if err := s.persister.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close log: %w", err))
			}
		}
		if s.admin != nil {
			ctx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
			if err := s.admin.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to close admin endpoint: %w", err))
			}
			cancel()
		}

		s.closeErr = errors.Join(errs...)
		Logger.Infof("server stopped")
	})
	return s.closeErr
}

// init creates the store, restores it from the command log and wires the
// dispatcher, the metrics and the transport
func (s *RPCServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	Logger.Infof("Created RESP Server")
	Logger.Infof(s.config.String())

	s.db = maple.NewMapleDB(&maple.DBOptions{
		NumShards:     s.config.NumShards,
		SweepInterval: s.config.SweepInterval(),
	})

	// Restore the store and open the log. The dispatcher gets a nil interface
	// (not a nil *aof.Persister) when the log is disabled.
	var log CommandLogger
	if s.config.AOFEnabled {
		if err := s.restore(); err != nil {
			return err
		}

		persister, err := aof.Open(s.config.AOFPath, aof.Options{Fsync: s.config.AOFFsync})
		if err != nil {
			return err
		}
		s.persister = persister
		log = persister
	}

	s.dispatcher = NewDispatcher(s.db, log, WithMetrics(s.metrics))
	s.registerGauges()

	if observer, ok := s.transport.(transport.ConnectionObserver); ok {
		observer.OnConnection(s.metrics.ConnectionOpened, s.metrics.ConnectionClosed, s.metrics.ProtocolError)
	}

	if s.config.MetricsEndpoint != "" {
		admin, err := metrics.StartAdminServer(s.config.MetricsEndpoint, s.metrics, s.health, s.config.LogLevel == "debug")
		if err != nil {
			return err
		}
		s.admin = admin
	}

	// Configure the transport layer
	s.transport.RegisterHandler(s.dispatcher.Dispatch)

	Logger.Infof("respkv setup completed successfully")
	return nil
}

// restore replays the command log into the store through a dispatcher without
// a log. A corrupt log aborts the start unless AOFIgnoreCorruption is set, in
// which case the log is cut back to the replayed prefix and the rest is moved
// to a file next to it.
func (s *RPCServer) restore() error {
	start := time.Now()
	stats, err := aof.ReplayFile(s.config.AOFPath, NewDispatcher(s.db, nil).Dispatch)
	s.metrics.ObserveReplay(stats.Frames, time.Since(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, aof.ErrCorrupt) && s.config.AOFIgnoreCorruption:
		Logger.Warningf("%v", err)
		Logger.Warningf("continuing with %d replayed commands, the log is cut back to %d bytes",
			stats.Frames, stats.Bytes)
		tailPath, err := aof.SplitCorrupt(s.config.AOFPath, stats.Bytes)
		if err != nil {
			return fmt.Errorf("failed to set the corrupt log tail aside: %w", err)
		}
		if tailPath != "" {
			Logger.Warningf("records after the corruption were saved to %s", tailPath)
		}
		return nil
	default:
		return err
	}
}

// registerGauges exposes the store size and the log size
func (s *RPCServer) registerGauges() {
	s.metrics.RegisterGauge("respkv_keys", func() float64 {
		return float64(s.db.GetInfo().Keys)
	})
	s.metrics.RegisterGauge("respkv_list_keys", func() float64 {
		return float64(s.db.GetInfo().ListKeys)
	})
	s.metrics.RegisterGauge("respkv_expiring_keys", func() float64 {
		return float64(s.db.GetInfo().ExpiringKeys)
	})
	if s.persister != nil {
		s.metrics.RegisterGauge("respkv_aof_bytes_written", func() float64 {
			return float64(s.persister.BytesWritten())
		})
	}
}

// health reports whether the server accepts commands
func (s *RPCServer) health() error {
	if s.closing.Load() {
		return errors.New("server is shutting down")
	}
	return nil
}

// Metrics returns the metrics registry of the server
func (s *RPCServer) Metrics() *metrics.Registry {
	return s.metrics
}
