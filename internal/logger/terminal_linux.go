//go:build linux

package logger

import (
	"syscall"
	"unsafe"
)

// TCGETS is Linux's ioctl request number for reading terminal attributes;
// BSD-family Unix (terminal.go) uses TIOCGETA for the same query instead.
const TCGETS = 0x5401

// isTerminal reports whether fd is a terminal on Linux.
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, err := syscall.Syscall6(
		syscall.SYS_IOCTL,
		fd,
		TCGETS,
		uintptr(unsafe.Pointer(&termios)),
		0, 0, 0,
	)
	return err == 0
}
