//go:build !linux
// +build !linux

package ui

// disableInputEcho is a no-op outside linux; echo stays on.
func disableInputEcho(fd int) (func(), error) {
	return nil, nil
}
