package main

import (
	"io"
	"log/slog"
	"os"
)

// setupLogger routes diagnostics to path, or to stderr when path is empty or
// cannot be opened. Stdout belongs to the process table. The returned func
// flushes and closes the file.
func setupLogger(path string, level slog.Level) func() {
	var (
		out     io.Writer = os.Stderr
		logFile *os.File
		openErr error
	)
	if path != "" {
		logFile, openErr = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if openErr == nil {
			out = logFile
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("app", "procguard"))

	switch {
	case logFile != nil:
		slog.Info("Persistent logging enabled", "file", path)
	case openErr != nil:
		slog.Error("Persistent logging disabled: failed to open log file", "file", path, "err", openErr)
	}

	return func() {
		if logFile != nil {
			_ = logFile.Sync()
			_ = logFile.Close()
		}
	}
}
