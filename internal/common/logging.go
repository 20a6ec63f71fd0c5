// Package common provides shared logging, configuration, and error types
// used by the queue and lock repositories.
package common

import (
	"os"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// Logger wraps arbor.ILogger to provide a consistent interface
type Logger struct {
	arbor.ILogger
}

// discardWriter implements writers.IWriter and discards all output.
// Used by NewSilentLogger to prevent dispatch to globally-registered writers.
type discardWriter struct{}

func (w *discardWriter) Write(p []byte) (int, error)          { return len(p), nil }
func (w *discardWriter) WithLevel(_ log.Level) writers.IWriter { return w }
func (w *discardWriter) GetFilePath() string                   { return "" }
func (w *discardWriter) Close() error                          { return nil }

// NewLogger creates a new logger with the specified level, console writer (stderr),
// and memory writer for diagnostics.
func NewLogger(level string) *Logger {
	arborLogger := arbor.NewLogger().
		WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			Writer:     os.Stderr,
			TimeFormat: "2006-01-02T15:04:05Z07:00",
		}).
		WithMemoryWriter(models.WriterConfiguration{
			Type: models.LogWriterTypeMemory,
		}).
		WithLevelFromString(level)

	return &Logger{ILogger: arborLogger}
}

// NewSilentLogger creates a logger that discards all output.
// Uses a discardWriter to prevent fallthrough to globally-registered writers.
func NewSilentLogger() *Logger {
	arborLogger := arbor.NewLogger().WithWriters([]writers.IWriter{&discardWriter{}})
	return &Logger{ILogger: arborLogger}
}

// WithCorrelationId returns a new Logger with a correlation ID set.
// Useful for tracing a single pull/complete or lock/release cycle through
// log output when several workers run concurrently.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}
