package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func stubTerminal(t *testing.T, ttys map[int]bool, echo func(int) (func(), error)) {
	t.Helper()
	prevTerm, prevEcho := isTerminal, disableEcho
	t.Cleanup(func() {
		isTerminal = prevTerm
		disableEcho = prevEcho
	})
	isTerminal = func(fd int) bool { return ttys[fd] }
	disableEcho = echo
}

func TestSingleViewSkipsNonTerminal(t *testing.T) {
	echoCalls := 0
	stubTerminal(t, map[int]bool{}, func(int) (func(), error) {
		echoCalls++
		return nil, nil
	})

	var out bytes.Buffer
	restore := enterSingleView(&out, 1, 0)
	restore()
	if out.Len() != 0 || echoCalls != 0 {
		t.Fatalf("expected no terminal changes, got %q and %d echo calls", out.String(), echoCalls)
	}
}

func TestSingleViewRestoresOnce(t *testing.T) {
	restored := 0
	stubTerminal(t, map[int]bool{0: true, 1: true}, func(int) (func(), error) {
		return func() { restored++ }, nil
	})

	var out bytes.Buffer
	restore := enterSingleView(&out, 1, 0)
	if out.String() != enterAltScreen {
		t.Fatalf("unexpected enter sequence %q", out.String())
	}

	restore()
	restore()
	if restored != 1 {
		t.Fatalf("echo should be restored exactly once, got %d", restored)
	}
	if got := strings.Count(out.String(), leaveAltScreen); got != 1 {
		t.Fatalf("expected one leave sequence, got %d in %q", got, out.String())
	}
}

func TestSingleViewToleratesEchoFailure(t *testing.T) {
	stubTerminal(t, map[int]bool{0: true, 1: true}, func(int) (func(), error) {
		return nil, errors.New("inappropriate ioctl")
	})

	var out bytes.Buffer
	restore := enterSingleView(&out, 1, 0)
	restore()
	if !strings.HasSuffix(out.String(), leaveAltScreen) {
		t.Fatalf("screen must still be restored, got %q", out.String())
	}
}
