//go:build linux

package resolve

import "golang.org/x/sys/unix"

// isTerminal reports whether fd refers to a tty, via the same termios
// ioctl golang.org/x/term uses internally — there's no x/term dependency
// in this module, but x/sys/unix already is one.
func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}
