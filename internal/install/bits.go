package install

import (
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
)

// These are all immediate, destructive operations: they put a thing
// where it's declared to go, possibly removing whatever was previously
// there. They explicitly don't set flags — that's a separate final
// pass.

// installDir implements the Directory placement rule: if the target
// exists and isn't a directory, remove it; create with the given mode;
// set owner/mode as needed.
func installDir(fsys billy.Filesystem, dst string, r metadata.Record, priv Privileged, privileged bool) error {
	fi, err := fsys.Lstat(dst)
	exists := err == nil
	if exists && !fi.IsDir() {
		if err := fsys.Remove(dst); err != nil {
			return fmt.Errorf("install dir %s: remove conflicting entry: %w", dst, err)
		}
		exists = false
	}

	if !exists {
		if err := fsys.MkdirAll(dst, os.FileMode(r.Mode())); err != nil {
			return fmt.Errorf("install dir %s: %w", dst, err)
		}
	}
	return setPerms(fsys, dst, r, priv, privileged)
}

// installFile implements the File placement rule: decompress the
// object named by r.Sum() into a sibling temp file, fsync it if the
// underlying file supports that, set perms, then rename over dst. If
// dst is currently a directory, it is removed first with a loud notice
// via the returned bool.
func installFile(fsys billy.Filesystem, dst string, r metadata.Record, store *objstore.Store, priv Privileged, privileged, fsync bool) (dirReplaced bool, err error) {
	if fi, statErr := fsys.Lstat(dst); statErr == nil && fi.IsDir() {
		if err := util.RemoveAll(fsys, dst); err != nil {
			return false, fmt.Errorf("install file %s: remove conflicting dir: %w", dst, err)
		}
		dirReplaced = true
	}

	dstDir := parentDir(dst)
	if err := fsys.MkdirAll(dstDir, 0o755); err != nil {
		return dirReplaced, fmt.Errorf("install file %s: ensure parent dir: %w", dst, err)
	}

	src, err := store.Open(r.Sum())
	if err != nil {
		return dirReplaced, fmt.Errorf("install file %s: open object %s: %w", dst, r.Sum(), err)
	}
	defer src.Close()

	tmp, err := util.TempFile(fsys, dstDir, "fu-")
	if err != nil {
		return dirReplaced, fmt.Errorf("install file %s: tempfile: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = fsys.Remove(tmpName) }()

	if _, err := copyAndMaybeSync(tmp, src, fsync); err != nil {
		tmp.Close()
		return dirReplaced, fmt.Errorf("install file %s: write content: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return dirReplaced, fmt.Errorf("install file %s: close tempfile: %w", dst, err)
	}

	if err := setPerms(fsys, tmpName, r, priv, privileged); err != nil {
		return dirReplaced, fmt.Errorf("install file %s: %w", dst, err)
	}

	if err := fsys.Rename(tmpName, dst); err != nil {
		return dirReplaced, fmt.Errorf("install file %s: rename into place: %w", dst, err)
	}
	return dirReplaced, nil
}

// installSymlink implements the Symlink placement rule: if an entry
// already exists and is the same symlink, no-op; otherwise replace it.
func installSymlink(fsys billy.Filesystem, dst string, r metadata.Record) error {
	if fi, err := fsys.Lstat(dst); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			if cur, err := fsys.Readlink(dst); err == nil && cur == r.Target() {
				return nil
			}
		} else if fi.IsDir() {
			if err := util.RemoveAll(fsys, dst); err != nil {
				return fmt.Errorf("install symlink %s: remove conflicting dir: %w", dst, err)
			}
			return fsys.Symlink(r.Target(), dst)
		}
		if err := fsys.Remove(dst); err != nil {
			return fmt.Errorf("install symlink %s: remove stale entry: %w", dst, err)
		}
	}
	return fsys.Symlink(r.Target(), dst)
}

// installHardlink implements the Hardlink placement rule: the target
// file must already exist (files are installed before hardlinks, spec
// 's type order); if dst already links to the same inode, no-op.
func installHardlink(fsys billy.Filesystem, dst, targetPath string, priv Privileged) error {
	targetFI, err := fsys.Lstat(targetPath)
	if err != nil {
		return fmt.Errorf("install hardlink %s: target %s missing: %w", dst, targetPath, err)
	}

	if fi, err := fsys.Lstat(dst); err == nil {
		if fi.IsDir() {
			if err := util.RemoveAll(fsys, dst); err != nil {
				return fmt.Errorf("install hardlink %s: remove conflicting dir: %w", dst, err)
			}
		} else {
			if sameInode(fi, targetFI) {
				return nil
			}
			if err := fsys.Remove(dst); err != nil {
				return fmt.Errorf("install hardlink %s: remove stale entry: %w", dst, err)
			}
		}
	}

	return priv.Link(targetPath, dst)
}

// copyAndMaybeSync copies src into dst, fsyncing dst afterward when sync
// is true and dst's concrete type supports it (billy.File carries no
// Sync method in its common interface; osfs's file wraps *os.File,
// which does).
func copyAndMaybeSync(dst billy.File, src io.Reader, sync bool) (int64, error) {
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, err
	}
	if sync {
		if s, ok := dst.(interface{ Sync() error }); ok {
			if err := s.Sync(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// removePath deletes dst, tolerating a non-empty directory by
// downgrading it to a reported warning rather than an error (spec
//: "Directory removal that fails is downgraded to a warning").
func removePath(fsys billy.Filesystem, dst string) (warnedNonEmpty bool, err error) {
	fi, err := fsys.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if !fi.IsDir() {
		return false, fsys.Remove(dst)
	}

	if err := fsys.Remove(dst); err != nil {
		return true, nil
	}
	return false, nil
}

// setPerms sets owner (if privileged) and mode on an existing path.
func setPerms(fsys billy.Filesystem, dst string, r metadata.Record, priv Privileged, privileged bool) error {
	fi, err := fsys.Lstat(dst)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dst, err)
	}

	if privileged {
		uid, gid := r.Owner()
		if err := priv.Chown(dst, int(uid), int(gid)); err != nil {
			return fmt.Errorf("chown %s: %w", dst, err)
		}
	}

	want := os.FileMode(r.Mode()).Perm()
	if fi.Mode().Perm() != want {
		if err := priv.Chmod(dst, want); err != nil {
			return fmt.Errorf("chmod %s: %w", dst, err)
		}
	}
	return nil
}

func parentDir(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	if i <= 0 {
		return "/"
	}
	return p[:i]
}
