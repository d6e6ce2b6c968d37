package common

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type TransportType string

const (
	TransportTCP  TransportType = "tcp"
	TransportUnix TransportType = "unix"
)

// ServerConfig holds all configuration parameters of the RESP server.
type ServerConfig struct {
	// Transport settings
	Endpoint       string
	Transport      TransportType
	TimeoutSecond  int64 // idle timeout per connection (0 = none)
	ReadBufferSize int   // bytes read from a connection per read call

	// Store settings
	NumShards           int
	SweepIntervalMillis int64 // time between expiry sweeps (0 = default, < 0 = off)

	// Persistence settings
	AOFEnabled          bool
	AOFPath             string
	AOFFsync            bool
	AOFIgnoreCorruption bool // start with the replayed prefix of a corrupt log instead of aborting

	// Admin HTTP endpoint for /metrics and /healthz (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// SweepInterval returns the sweep interval as duration
func (c *ServerConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMillis) * time.Millisecond
}

// Timeout returns the idle timeout as duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// Validate checks the configuration for values the server cannot start with
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.Transport != TransportTCP && c.Transport != TransportUnix {
		return fmt.Errorf("invalid transport %q, must be one of %s, %s", c.Transport, TransportTCP, TransportUnix)
	}
	if c.AOFEnabled && c.AOFPath == "" {
		return fmt.Errorf("aof is enabled but aof-path is empty")
	}
	if c.ReadBufferSize < 0 {
		return fmt.Errorf("read buffer size must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RESP Server")
	addField("Endpoint", c.Endpoint)
	addField("Transport", string(c.Transport))
	addField("Idle Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))

	// Store
	addSection("Store")
	addField("Shards", fmt.Sprintf("%d", c.NumShards))
	addField("Sweep Interval", fmt.Sprintf("%d ms", c.SweepIntervalMillis))

	// Persistence
	addSection("Persistence")
	addField("AOF Enabled", fmt.Sprintf("%t", c.AOFEnabled))
	if c.AOFEnabled {
		addField("AOF Path", c.AOFPath)
		addField("AOF Fsync", fmt.Sprintf("%t", c.AOFFsync))
		addField("Ignore Corruption", fmt.Sprintf("%t", c.AOFIgnoreCorruption))
	}

	// Admin
	addSection("Admin")
	if c.MetricsEndpoint == "" {
		addField("Metrics Endpoint", "disabled")
	} else {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	Transport     TransportType
	TimeoutSecond int
}

// Timeout returns the client timeout as duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Transport", string(c.Transport))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
