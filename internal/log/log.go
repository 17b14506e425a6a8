// Package log wraps zerolog for structured, component-scoped logging.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a log severity.
type Level string

const (
	TraceLevel Level = "trace"
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case TraceLevel:
		level = zerolog.TraceLevel
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// LevelFromVerbosity maps a repeated -v count onto a Level, following the
// CLI convention Error(0) -> Warn(1) -> Info(2) -> Debug(3) -> Trace(4+).
func LevelFromVerbosity(count int) Level {
	switch {
	case count <= 0:
		return ErrorLevel
	case count == 1:
		return WarnLevel
	case count == 2:
		return InfoLevel
	case count == 3:
		return DebugLevel
	default:
		return TraceLevel
	}
}

// WithComponent creates a child logger scoped to a component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithVolume creates a child logger scoped to a volume name.
func WithVolume(name string) zerolog.Logger {
	return Logger.With().Str("volume", name).Logger()
}

// WithJob creates a child logger scoped to a sync job identity.
func WithJob(src, via, dst string) zerolog.Logger {
	return Logger.With().Str("src", src).Str("via", via).Str("dst", dst).Logger()
}

// Fatal logs msg at fatal level and terminates the process, for startup
// failures that leave nothing sensible to return an error to.
func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
