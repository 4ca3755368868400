//go:build freebsd || darwin || netbsd || openbsd

package install

import "golang.org/x/sys/unix"

// chflags sets path's flags to exactly flags via lchflags(2), the BSD
// family's native immutable-flag mechanism (final "Flags"
// pass). Using the l-variant matters: a symlink's own flags, not its
// target's, are what the manifest describes.
func chflags(path string, flags uint32) error {
	return unix.Lchflags(path, int(flags))
}
