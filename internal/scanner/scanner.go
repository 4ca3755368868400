// Package scanner implements filesystem scan: parallel
// lstat+hash classification of a set of paths under a base directory
// into the closed Record variants internal/metadata defines.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

// ErrNonexistent marks a scanned path that does not exist, which the
// scanner reports as a KindAbsent Record rather than a hard failure —
// freebsd-update's ScanErr::Nonexistent is handled the same way, split
// out from genuine I/O errors.
var ErrNonexistent = errors.New("scanner: path does not exist")

// Options controls a single Scan call.
type Options struct {
	// Hash, when false, skips content hashing of regular files (used by
	// the immutable-flag-only sweep, /).
	Hash bool
}

type fileKind int

const (
	ftFile fileKind = iota
	ftDir
	ftSymlink
)

type statResult struct {
	path    string
	kind    fileKind
	dev     uint64
	ino     uint64
	nlink   uint64
	uid     uint32
	gid     uint32
	mode    uint32
	flags   uint32
	symlink string
	sum     hash.Hash
}

// lstatRaw is implemented per-OS (scanner_linux.go / scanner_bsd.go /
// scanner_windows.go) because billy.Filesystem's Lstat does not expose
// dev/ino/nlink/flags;
// those require a type assertion on the underlying os.FileInfo.Sys(),
// the same trick go-git's worktree_bsd.go/worktree_darwin.go use for
// index entries.
func lstatRaw(fi fs.FileInfo) (dev, ino, nlink uint64, uid, gid, flags uint32, ok bool)

// Scan scans every path in paths, relative to basedir on fsys, and
// classifies each into the Set metadata uses (File/Hardlink/Directory/
// Symlink/Absent). Hardlink detection groups paths sharing the same
// (dev, ino) in lexicographic path order, matching the asciibetical
// determinism freebsd-update's src/core/scan.rs deliberately preserves:
// "it'll all go into... sorted... we definitely want the hardlink order
// to be deterministic."
func Scan(ctx context.Context, limits pool.Limits, fsys billy.Filesystem, basedir string, paths []string, opts Options) (*metadata.Set, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	control := pool.Control{FS: fsys, Policy: pool.PathPolicy{IgnoreHashes: !opts.Hash}}

	do := func(_ context.Context, ctrl pool.Control, p string) (statResult, error) {
		return statOne(ctrl.FS, basedir, p, opts.Hash)
	}

	result, dispatchErr := pool.Run(ctx, limits, pool.CPU, control, pool.Control.Clone, sorted, do, nil)
	if dispatchErr != nil {
		return nil, fmt.Errorf("scanner: dispatch: %w", dispatchErr)
	}

	set := metadata.NewSet()
	var hardErrs []error
	for _, f := range result.Failures {
		if errors.Is(f.Err, ErrNonexistent) {
			set.Add(metadata.NewAbsent(f.Request))
			continue
		}
		hardErrs = append(hardErrs, fmt.Errorf("%s: %w", f.Request, f.Err))
	}
	if len(hardErrs) > 0 {
		return nil, errors.Join(hardErrs...)
	}

	sort.Slice(result.Successes, func(i, j int) bool { return result.Successes[i].path < result.Successes[j].path })

	type dinKey struct{ dev, ino uint64 }
	seen := make(map[dinKey]string)

	for _, r := range result.Successes {
		if r.nlink > 1 {
			key := dinKey{r.dev, r.ino}
			if target, ok := seen[key]; ok {
				set.Add(metadata.NewHardlink(r.path, target))
				continue
			}
			seen[key] = r.path
		}

		switch r.kind {
		case ftDir:
			set.Add(metadata.NewDirectory(r.path, r.uid, r.gid, r.mode, r.flags))
		case ftSymlink:
			set.Add(metadata.NewSymlink(r.path, r.symlink, r.uid, r.gid, r.mode, r.flags))
		case ftFile:
			set.Add(metadata.NewFile(r.path, r.uid, r.gid, r.mode, r.flags, r.sum))
		}
	}
	return set, nil
}

func statOne(fsys billy.Filesystem, basedir, relPath string, doHash bool) (statResult, error) {
	full := path.Join(basedir, relPath)

	fi, err := fsys.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return statResult{path: relPath}, fmt.Errorf("%s: %w", relPath, ErrNonexistent)
		}
		return statResult{path: relPath}, fmt.Errorf("lstat %s: %w", full, err)
	}

	r := statResult{path: relPath}
	switch {
	case fi.IsDir():
		r.kind = ftDir
	case fi.Mode()&fs.ModeSymlink != 0:
		r.kind = ftSymlink
	case fi.Mode().IsRegular():
		r.kind = ftFile
	default:
		return r, fmt.Errorf("%s: unsupported file type %s", relPath, fi.Mode())
	}

	dev, ino, nlink, uid, gid, flags, ok := lstatRaw(fi)
	if ok {
		r.dev, r.ino, r.nlink, r.uid, r.gid, r.flags = dev, ino, nlink, uid, gid, flags
	} else {
		r.nlink = 1
	}
	r.mode = uint32(fi.Mode().Perm())

	switch r.kind {
	case ftSymlink:
		target, err := fsys.Readlink(full)
		if err != nil {
			return r, fmt.Errorf("readlink %s: %w", full, err)
		}
		r.symlink = target
	case ftFile:
		if !doHash {
			break
		}
		f, err := fsys.Open(full)
		if err != nil {
			return r, fmt.Errorf("open %s: %w", full, err)
		}
		defer f.Close()
		sum, err := hash.Sum(f)
		if err != nil {
			return r, fmt.Errorf("hash %s: %w", full, err)
		}
		r.sum = sum
	}
	return r, nil
}
