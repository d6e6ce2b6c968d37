package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// AdminServer serves the metrics of a Registry over HTTP.
//
// Routes:
//   - GET /metrics  Prometheus text format
//   - GET /healthz  200 "ok" or 503 with the error of the health check
type AdminServer struct {
	registry *Registry
	health   func() error
	server   *http.Server
	listener net.Listener
	debug    bool
}

// StartAdminServer listens on endpoint and serves the admin routes in the background.
// health may be nil, in which case /healthz always reports ok.
func StartAdminServer(endpoint string, registry *Registry, health func() error, debug bool) (*AdminServer, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on admin endpoint %s: %w", endpoint, err)
	}

	a := &AdminServer{
		registry: registry,
		health:   health,
		listener: listener,
		debug:    debug,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", a.wrap(a.handleMetrics))
	mux.HandleFunc("GET /healthz", a.wrap(a.handleHealth))

	a.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	Logger.Infof("Starting admin HTTP server on %s", listener.Addr())

	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("admin HTTP server stopped: %v", err)
		}
	}()

	return a, nil
}

// Addr returns the address the admin server listens on
func (a *AdminServer) Addr() string {
	return a.listener.Addr().String()
}

// Close shuts the admin server down, waiting at most until ctx is done
func (a *AdminServer) Close(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (a *AdminServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	a.registry.WritePrometheus(w)
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if a.health != nil {
		if err := a.health(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok\n"))
}

// wrap adds request logging in debug mode
func (a *AdminServer) wrap(next http.HandlerFunc) http.HandlerFunc {
	if a.debug {
		return loggerMiddleware(next)
	}
	return next
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
