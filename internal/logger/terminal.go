//go:build !windows && !linux

package logger

import (
	"syscall"
	"unsafe"
)

// isTerminal reports whether fd is a terminal on BSD-family Unix (macOS and
// friends); terminal_linux.go covers Linux, which uses a different ioctl
// number for the same query.
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, err := syscall.Syscall6(
		syscall.SYS_IOCTL,
		fd,
		syscall.TIOCGETA,
		uintptr(unsafe.Pointer(&termios)),
		0, 0, 0,
	)
	return err == 0
}
