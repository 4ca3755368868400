//go:build darwin || freebsd || netbsd || openbsd

package scanner

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// lstatRaw extracts dev/ino/nlink/uid/gid/flags from the platform
// Stat_t, the same syscall.Stat_t type assertion go-git's
// worktree_bsd.go and worktree_darwin.go use on index.Entry.Sys(). BSD
// and Darwin's Stat_t carries st_flags (SF_IMMUTABLE and friends),
// which freebsd-update's scanner masks down to just SF_IMMUTABLE
// ("we ignore all flags except schg, because otherwise life is too
// annoying") — internal/install applies that same mask when deciding
// what to clear before an upgrade.
func lstatRaw(fi fs.FileInfo) (dev, ino, nlink uint64, uid, gid, flags uint32, ok bool) {
	st, isStat := fi.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, 0, 0, 0, 0, 0, false
	}
	masked := uint32(st.Flags) & uint32(unix.SF_IMMUTABLE)
	return uint64(st.Dev), uint64(st.Ino), uint64(st.Nlink), st.Uid, st.Gid, masked, true
}
