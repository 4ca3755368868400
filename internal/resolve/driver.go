// Package resolve implements the conflict-resolution driver:
// walking a VersionUpgrade manifest's conflicted merges one at a time,
// spawning an editor on each, and promoting cleanly resolved ones back
// into the manifest's clean set. Grounded on freebsd-update's
// src/cmd/resolve_merges.rs for the exact prompt/flow.
package resolve

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/merge"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

// Driver runs the conflict resolution loop against a single pending
// manifest.
type Driver struct {
	FS     billy.Filesystem
	Store  *objstore.Store
	TmpDir string // scratch dir merge files are edited under, e.g. "<statedir>/tmp"

	Interactor Interactor
	Out        io.Writer
}

// Result summarizes one Run.
type Result struct {
	Fixed     int
	Remaining int
}

// ErrConflictsRemain is returned (wrapping Result information via the
// caller's own bookkeeping) when the user skips one or more conflicts.
var ErrConflictsRemain = fmt.Errorf("resolve: conflicts remain")

// Run walks every path in m.MergeConflict(), sorted, offering the user
// a chance to edit and accept each one. A path the user skips stays
// conflicted. Returns a non-nil error (wrapping ErrConflictsRemain) iff
// any conflict is still unresolved when Run returns, but Result is
// always populated so a caller can report partial progress either way.
func (d *Driver) Run(m *state.Manifest) (Result, error) {
	conflicts := m.MergeConflict()
	total := len(conflicts)
	if total == 0 {
		return Result{}, nil
	}

	var paths []string
	for p := range conflicts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fixed := 0
pathLoop:
	for i, p := range paths {
		rec := conflicts[p]

		mrgPath := d.FS.Join(d.TmpDir, "merge", p)
		if err := d.FS.MkdirAll(parentDir(mrgPath), 0o755); err != nil {
			return Result{Fixed: fixed, Remaining: total - fixed}, fmt.Errorf("resolve: %s: %w", p, err)
		}
		if err := d.extractToFile(rec.Res, mrgPath); err != nil {
			return Result{Fixed: fixed, Remaining: total - fixed}, fmt.Errorf("resolve: %s: %w", p, err)
		}

		resp, err := d.Interactor.Prompt(fmt.Sprintf("\n[%d/%d] Conflicts found in %s. Press 'e' to spawn off editor and resolve, or 's' to skip.\n", i+1, total, p))
		if err != nil {
			return Result{Fixed: fixed, Remaining: total - fixed}, err
		}
		if strings.ToLower(resp) == "s" {
			continue
		}

	editLoop:
		for {
			if err := d.Interactor.EditFile(mrgPath); err != nil {
				return Result{Fixed: fixed, Remaining: total - fixed}, fmt.Errorf("resolve: %s: edit: %w", p, err)
			}

			content, err := readAll(d.FS, mrgPath)
			if err != nil {
				return Result{Fixed: fixed, Remaining: total - fixed}, fmt.Errorf("resolve: %s: %w", p, err)
			}

			if merge.HasConflictMarkers(content) {
				for {
					resp, err := d.Interactor.Prompt("\nConflict markers remain. 'e'dit or 's'kip?\n")
					if err != nil {
						return Result{Fixed: fixed, Remaining: total - fixed}, err
					}
					switch strings.ToLower(resp) {
					case "s":
						continue pathLoop
					case "e":
						continue editLoop
					}
				}
			}

			for {
				resp, err := d.Interactor.Prompt("\nConflict resolved. Choose action:\n'e'dit again,\n's'kip and discard current resolution,\n'd'iff against current version,\n'D'iff against new upstream version, or\n'a'ccept?\n")
				if err != nil {
					return Result{Fixed: fixed, Remaining: total - fixed}, err
				}
				// Case matters here, same as freebsd-update's
				// resolve_merges.rs: lowercase 'd' diffs against cur,
				// uppercase 'D' diffs against new. 'a'/'s'/'e' accept
				// either case.
				switch resp {
				case "a", "A":
					if err := d.accept(m, p, rec, content); err != nil {
						return Result{Fixed: fixed, Remaining: total - fixed}, fmt.Errorf("resolve: %s: %w", p, err)
					}
					fixed++
					continue pathLoop
				case "s", "S":
					continue pathLoop
				case "d":
					if err := d.printDiff(p, rec.Cur, content); err != nil {
						return Result{Fixed: fixed, Remaining: total - fixed}, err
					}
				case "D":
					if err := d.printDiff(p, rec.New, content); err != nil {
						return Result{Fixed: fixed, Remaining: total - fixed}, err
					}
				case "e", "E":
					continue editLoop
				}
			}
		}
	}

	remaining := total - fixed
	if remaining > 0 {
		return Result{Fixed: fixed, Remaining: remaining}, fmt.Errorf("%w: %d of %d", ErrConflictsRemain, remaining, total)
	}
	return Result{Fixed: fixed, Remaining: 0}, nil
}

// accept finalizes path's resolution: store the edited content under
// its own hash and promote the conflict to a clean merge record.
func (d *Driver) accept(m *state.Manifest, path string, rec state.MergeRecord, content []byte) error {
	h := hash.SumBytes(content)
	if err := d.Store.Put(h, bytes.NewReader(content)); err != nil {
		return err
	}
	return m.ResolveConflict(path, h)
}

func (d *Driver) printDiff(path string, prevHash hash.Hash, content []byte) error {
	rc, err := d.Store.Open(prevHash)
	if err != nil {
		return fmt.Errorf("open %s for diff: %w", prevHash, err)
	}
	defer rc.Close()

	prev, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	diffOut := merge.Diff(path, prev, content)
	if d.Out != nil {
		_, err = d.Out.Write(diffOut)
	}
	return err
}

func (d *Driver) extractToFile(h hash.Hash, dst string) error {
	src, err := d.Store.Open(h)
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := d.FS.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, src)
	return err
}

func readAll(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
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
