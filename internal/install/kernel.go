package install

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const kernelBackupSentinel = ".freebsd-update"

// BackupKernel copies srcDir (the running kernel directory) to the
// first free or previously-ours slot under "<boot>/kernel.old",
// "<boot>/kernel.old1" .. "<boot>/kernel.old9". It's a no-op if srcDir
// doesn't exist. Grounded on freebsd-update's backup_kernel/do_backup/
// backup_dir; dir entries are skipped rather than recursed into, same
// as there.
func BackupKernel(fsys billy.Filesystem, srcDir, bootDir string, priv Privileged) error {
	if _, err := fsys.Lstat(srcDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backup kernel: stat %s: %w", srcDir, err)
	}

	dst, err := findKernelBackupDir(fsys, bootDir)
	if err != nil {
		return fmt.Errorf("backup kernel: %w", err)
	}

	return backupKernelDir(fsys, srcDir, dst, priv)
}

// findKernelBackupDir finds the slot to write a kernel backup into: a
// directory that either doesn't exist yet, or already carries our
// sentinel file (meaning a prior run owns it and it's safe to replace).
func findKernelBackupDir(fsys billy.Filesystem, bootDir string) (string, error) {
	candidates := []string{fsys.Join(bootDir, "kernel.old")}
	for i := 1; i <= 9; i++ {
		candidates = append(candidates, fmt.Sprintf("%s%d", fsys.Join(bootDir, "kernel.old"), i))
	}

	for _, cand := range candidates {
		fi, err := fsys.Lstat(cand)
		if err != nil {
			if os.IsNotExist(err) {
				return cand, nil
			}
			continue
		}
		if fi.IsDir() {
			if _, err := fsys.Lstat(fsys.Join(cand, kernelBackupSentinel)); err == nil {
				return cand, nil
			}
		}
	}
	return "", fmt.Errorf("no free kernel backup slot under %s", bootDir)
}

// backupKernelDir replaces dst with a fresh hardlinked copy of every
// regular file and symlink directly under src. Subdirectories are
// silently skipped, matching f-u.sh's flat-tree assumption.
func backupKernelDir(fsys billy.Filesystem, src, dst string, priv Privileged) error {
	if fi, err := fsys.Lstat(dst); err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dst)
		}
		if err := util.RemoveAll(fsys, dst); err != nil {
			return fmt.Errorf("remove existing backup %s: %w", dst, err)
		}
	}

	if err := fsys.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create backup dir %s: %w", dst, err)
	}
	sentinel, err := fsys.Create(fsys.Join(dst, kernelBackupSentinel))
	if err != nil {
		return fmt.Errorf("create backup sentinel: %w", err)
	}
	sentinel.Close()

	entries, err := fsys.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		srcPath := fsys.Join(src, entry.Name())
		dstPath := fsys.Join(dst, entry.Name())
		if err := priv.Link(srcPath, dstPath); err != nil {
			return fmt.Errorf("link %s to %s: %w", srcPath, dstPath, err)
		}
	}
	return nil
}
