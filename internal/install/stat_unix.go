//go:build !windows

package install

import (
	"os"
	"syscall"
)

// sameInode reports whether a and b are the same on-disk file, the
// hardlink placement rule's no-op check. Mirrors the syscall.Stat_t
// type assertion internal/scanner's platform files use for the same
// dev/ino comparison. When Sys() doesn't yield a Stat_t (e.g. an in-memory
// billy.Filesystem in tests), the two are conservatively treated as
// different so the caller falls through to remove-and-relink.
func sameInode(a, b os.FileInfo) bool {
	as, ok := a.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	bs, ok := b.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return uint64(as.Dev) == uint64(bs.Dev) && uint64(as.Ino) == uint64(bs.Ino)
}
