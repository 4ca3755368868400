//go:build linux

package scanner

import (
	"io/fs"
	"syscall"
)

// lstatRaw extracts dev/ino/nlink/uid/gid from the platform Stat_t, the
// same syscall.Stat_t type assertion go-git's worktree_bsd.go and
// worktree_darwin.go use on index.Entry.Sys(). Linux's Stat_t carries no
// kernel flags field (SF_IMMUTABLE is a BSD concept), so flags is
// always 0 here; scanner_bsd.go supplies the BSD variant that does read
// it.
func lstatRaw(fi fs.FileInfo) (dev, ino, nlink uint64, uid, gid, flags uint32, ok bool) {
	st, isStat := fi.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, 0, 0, 0, 0, 0, false
	}
	return uint64(st.Dev), uint64(st.Ino), uint64(st.Nlink), st.Uid, st.Gid, 0, true
}
