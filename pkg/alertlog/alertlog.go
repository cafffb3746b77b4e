// Package alertlog is the append-only record of alerts and enforcement actions.
//
// Each entry is written as a single line:
//
//	2006-01-02 15:04:05,000 - WARNING - ALERT | PID: 42 | ...
package alertlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TimeLayout is the timestamp prefix of every line.
const TimeLayout = "2006-01-02 15:04:05,000"

// Severity ranks entries; higher is more severe.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseSeverity accepts info, warning/warn or error (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

// Entry is one alert log line before formatting.
type Entry struct {
	Time     time.Time
	Severity Severity
	Message  string
	// Key groups repeats of the same condition across cycles. It is not written.
	Key string
}

// Line renders the entry without the trailing newline.
func (e Entry) Line() string {
	msg := strings.ReplaceAll(e.Message, "\n", " ")
	return fmt.Sprintf("%s - %s - %s", e.Time.Format(TimeLayout), e.Severity, msg)
}

// Sink accepts whole entries. An error means the entry was not recorded.
type Sink interface {
	Append(Entry) error
}

type syncer interface {
	Sync() error
}

// Log writes entries to an io.Writer, syncing after each one when the writer
// supports it.
type Log struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// Open appends to the file at path, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert log %s: %w", path, err)
	}
	return &Log{w: f, c: f}, nil
}

// New wraps an arbitrary writer. The caller keeps ownership of w.
func New(w io.Writer) *Log {
	return &Log{w: w}
}

// Append writes the entry as one line in a single Write call.
func (l *Log) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	line := e.Line() + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("alert log is closed")
	}
	if _, err := io.WriteString(l.w, line); err != nil {
		return fmt.Errorf("writing alert log: %w", err)
	}
	if s, ok := l.w.(syncer); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("syncing alert log: %w", err)
		}
	}
	return nil
}

// Close releases the underlying file, if Open created one.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if l.c != nil {
		err = l.c.Close()
	}
	l.w, l.c = nil, nil
	return err
}
