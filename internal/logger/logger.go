// Package logger configures application logging on top of zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "streamgrab.log"

// Logger is the application logger. When a log directory is configured,
// output is duplicated to a size-rotated file alongside the console stream.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for log files; empty disables file output
	MaxSizeMB  int    // rotate after this size (default 10)
	MaxBackups int    // rotated files to keep (default 5)
	MaxAgeDays int    // days to keep rotated files (default 30)
	Compress   bool   // gzip rotated files
}

// New creates a logger from cfg. Unparseable levels fall back to info;
// a log directory that cannot be created silently disables file output.
func New(cfg Config) *Logger {
	var console io.Writer = os.Stdout
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	output := console
	var rotator *lumberjack.Logger
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(cfg.Path, logFileName),
				MaxSize:    defaultTo(cfg.MaxSizeMB, 10),
				MaxBackups: defaultTo(cfg.MaxBackups, 5),
				MaxAge:     defaultTo(cfg.MaxAgeDays, 30),
				Compress:   cfg.Compress,
				LocalTime:  true,
			}
			output = io.MultiWriter(console, rotator)
		}
	}

	zl := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: zl, rotator: rotator}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

func defaultTo(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
