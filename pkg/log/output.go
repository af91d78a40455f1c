package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
)

// Output writes formatted entries somewhere.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// ConsoleOutput writes to stderr, serialized so concurrent components do not
// interleave partial lines.
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput creates a ConsoleOutput bound to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

// Write writes the formatted entry.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(formatted)
	return err
}

// Close is a no-op for console output.
func (o *ConsoleOutput) Close() error { return nil }

// RedirectStdLog routes standard library logs (used by Pebble) through logger
// at InfoLevel.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogBridge{logger: logger})
}

type stdLogBridge struct {
	logger Logger
}

func (b stdLogBridge) Write(p []byte) (int, error) {
	b.logger.Info(strings.TrimRight(string(p), "\n"), Component("stdlog"))
	return len(p), nil
}
