// Package logging configures the structured logger used across the agent.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config contains logger configuration.
type Config struct {
	// Level sets the logging level (trace, debug, info, warn, error).
	Level string
	// Pretty enables human-readable console output with colors.
	Pretty bool
	// Output sets the output writer (defaults to os.Stdout).
	Output io.Writer
	// SampleEvery, when > 1, logs only one in every N events at Warn level
	// and below. The CAN ingest and inspection hot paths log per-frame
	// warnings (decode_failure, out_of_order_sample) that would otherwise
	// flood stdout on a noisy bus.
	SampleEvery uint32
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: true,
		Output: os.Stdout,
	}
}

// New creates a new zerolog logger with the given configuration.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	switch cfg.Level {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05.000",
			NoColor:    false,
		}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()

	if cfg.SampleEvery > 1 {
		s := &zerolog.BasicSampler{N: cfg.SampleEvery}
		logger = logger.Sample(zerolog.LevelSampler{TraceSampler: s, DebugSampler: s, InfoSampler: s, WarnSampler: s})
	}

	return logger
}

// NewWithComponent creates a logger with a component field for structured logging.
func NewWithComponent(cfg Config, component string) zerolog.Logger {
	return New(cfg).With().Str("component", component).Logger()
}
