package common

import (
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    logger.LogLevel
		wantErr bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"verbose", logger.INFO, true},
		{"", logger.INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := ParseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected level %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInitLoggersRepeatedly(t *testing.T) {
	// every server in a process initializes the loggers again
	InitLoggers(ServerConfig{LogLevel: "error"})
	InitLoggers(ServerConfig{LogLevel: "debug"})
	InitLoggers(ServerConfig{LogLevel: "not-a-level"})
	InitLoggers(ServerConfig{LogLevel: "error"})
}
