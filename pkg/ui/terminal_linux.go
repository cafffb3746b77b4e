//go:build linux
// +build linux

package ui

import "golang.org/x/sys/unix"

// disableInputEcho clears ECHO on fd and returns a func that puts the saved
// termios back.
func disableInputEcho(fd int) (func(), error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}
	if saved.Lflag&unix.ECHO == 0 {
		return nil, nil
	}

	quiet := *saved
	quiet.Lflag &^= unix.ECHO
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &quiet); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, saved)
	}, nil
}
