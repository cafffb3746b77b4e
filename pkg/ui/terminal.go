package ui

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"
)

const (
	enterAltScreen = "\033[?1049h\033[?25l" // alternate buffer, hidden cursor
	leaveAltScreen = "\033[?25h\033[?1049l" // visible cursor, main buffer
)

// Seams so tests can fake a terminal.
var (
	isTerminal  = term.IsTerminal
	disableEcho = disableInputEcho
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isTerminal(int(f.Fd()))
}

// EnableSingleView switches stdout to the alternate screen buffer, hides the
// cursor and stops stdin echo. The returned func undoes all of it. It may be
// called more than once, so callers can both defer it and restore early.
func EnableSingleView() func() {
	return enterSingleView(os.Stdout, int(os.Stdout.Fd()), int(os.Stdin.Fd()))
}

func enterSingleView(out io.Writer, outFD, inFD int) func() {
	if !isTerminal(outFD) {
		return func() {}
	}
	_, _ = io.WriteString(out, enterAltScreen)

	var undoEcho func()
	if isTerminal(inFD) {
		undo, err := disableEcho(inFD)
		if err != nil {
			slog.Warn("Unable to suppress stdin echo", "err", err)
		}
		undoEcho = undo
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if undoEcho != nil {
				undoEcho()
			}
			_, _ = io.WriteString(out, leaveAltScreen)
		})
	}
}
