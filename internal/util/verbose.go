package util

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	output = &terminalWriter{w: os.Stdout}
)

// InitLogger initializes the global slog logger with appropriate level
func InitLogger(verbose bool) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if verbose {
		opts.Level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(output, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// GetLogger returns the configured logger instance
func GetLogger() *slog.Logger {
	if logger == nil {
		// Fallback initialization from the command line
		InitLogger(IsVerbose())
	}
	return logger
}

// IsVerbose checks if verbose mode is enabled by looking at command line arguments
func IsVerbose() bool {
	for _, arg := range os.Args {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}

// Output returns the writer log records and status lines are written to.
func Output() io.Writer {
	return output
}

// SetRawTerminal tells the log output that the terminal no longer translates
// "\n" into "\r\n".
func SetRawTerminal(raw bool) {
	output.mu.Lock()
	output.raw = raw
	output.mu.Unlock()
}

type terminalWriter struct {
	mu  sync.Mutex
	w   io.Writer
	raw bool
}

func (t *terminalWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.raw {
		return t.w.Write(p)
	}
	if _, err := t.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
