//go:build freebsd || darwin || netbsd || openbsd

package resolve

import "golang.org/x/sys/unix"

// isTerminal reports whether fd refers to a tty via the BSD-family
// termios ioctl.
func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	return err == nil
}
