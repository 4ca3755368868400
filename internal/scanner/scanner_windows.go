//go:build windows

package scanner

import "io/fs"

// lstatRaw has no meaningful dev/ino/flags story on Windows; the
// scanner falls back to treating every path as nlink==1 (no hardlink
// detection) and uid/gid 0, matching note that ownership
// comparison is privilege- and platform-gated.
func lstatRaw(fi fs.FileInfo) (dev, ino, nlink uint64, uid, gid, flags uint32, ok bool) {
	return 0, 0, 0, 0, 0, 0, false
}
