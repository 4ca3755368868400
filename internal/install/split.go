package install

import (
	"regexp"
	"sort"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// reLinkerFile and reSOFile classify File paths for the stable ordering
// the file-install step requires: runtime linker
// binaries first, then shared libraries, then everything else.
// Grounded verbatim on freebsd-update's re_linker_file/re_so_file.
var (
	reLinkerFile = regexp.MustCompile(`^/libexec/ld-elf.*\.so\.[0-9]+$`)
	reSOFile     = regexp.MustCompile(`.*/lib/.*\.so\.[0-9]+$`)
)

// ChangeSet is the type-grouped install/remove plan the installer walks
// in order. Once a pending manifest's cur/new have passed through
// internal/diff's idempotentFilter, what remains in them already IS the
// change set: new holds every addition and update, cur holds every
// path slated for removal.
type ChangeSet struct {
	Dirs  []metadata.Record
	Files []metadata.Record // pre-ordered: linker, then shlibs, then rest
	Syms  []metadata.Record
	Hards []metadata.Record
	Flags []metadata.Record // every installed record that declares flags

	// Removals, deepest path first so emptied directories can go too.
	// ShlibRemovals holds the subset excluded from the world phase
	// and deferred to cleanup.
	Removals      []metadata.Record
	ShlibRemovals []metadata.Record
}

// BuildChangeSet classifies cur (removal candidates) and new (install
// candidates) into a ChangeSet ready for Apply. A path in new with
// Kind Absent is an explicit removal directive even when cur has
// nothing at that path already.
func BuildChangeSet(cur, new *metadata.Set) ChangeSet {
	var cs ChangeSet

	removeSet := map[string]bool{}
	cur.Each(func(r metadata.Record) {
		if nr, ok := new.Get(r.Path()); !ok || nr.Kind() == metadata.KindAbsent {
			removeSet[r.Path()] = true
		}
	})
	new.Each(func(r metadata.Record) {
		if r.Kind() == metadata.KindAbsent {
			removeSet[r.Path()] = true
		}
	})

	var removalPaths []string
	for p := range removeSet {
		removalPaths = append(removalPaths, p)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(removalPaths)))
	for _, p := range removalPaths {
		r, ok := cur.Get(p)
		if !ok {
			continue
		}
		if isShlibOrLinker(p) {
			cs.ShlibRemovals = append(cs.ShlibRemovals, r)
		} else {
			cs.Removals = append(cs.Removals, r)
		}
	}

	var lds, shlibs, rest []metadata.Record
	for _, p := range new.Paths() {
		r, _ := new.Get(p)
		switch r.Kind() {
		case metadata.KindAbsent:
			continue
		case metadata.KindDirectory:
			cs.Dirs = append(cs.Dirs, r)
		case metadata.KindFile:
			switch {
			case reLinkerFile.MatchString(p):
				lds = append(lds, r)
			case reSOFile.MatchString(p):
				shlibs = append(shlibs, r)
			default:
				rest = append(rest, r)
			}
		case metadata.KindSymlink:
			cs.Syms = append(cs.Syms, r)
		case metadata.KindHardlink:
			cs.Hards = append(cs.Hards, r)
		}
		if r.Kind() != metadata.KindAbsent && r.HasFlags() {
			cs.Flags = append(cs.Flags, r)
		}
	}
	cs.Files = append(append(lds, shlibs...), rest...)

	return cs
}

func isShlibOrLinker(path string) bool {
	return reLinkerFile.MatchString(path) || reSOFile.MatchString(path)
}

// KernelOnly splits cs into the subset whose path lies under kernelDir
// and the remainder, for the upgrade kernel phase.
func (cs ChangeSet) KernelOnly(kernelDir string) (kernel, rest ChangeSet) {
	under := func(p string) bool {
		return p == kernelDir || (len(p) > len(kernelDir) && p[:len(kernelDir)] == kernelDir && p[len(kernelDir)] == '/')
	}
	splitRecs := func(in []metadata.Record) (yes, no []metadata.Record) {
		for _, r := range in {
			if under(r.Path()) {
				yes = append(yes, r)
			} else {
				no = append(no, r)
			}
		}
		return
	}

	kernel.Dirs, rest.Dirs = splitRecs(cs.Dirs)
	kernel.Files, rest.Files = splitRecs(cs.Files)
	kernel.Syms, rest.Syms = splitRecs(cs.Syms)
	kernel.Hards, rest.Hards = splitRecs(cs.Hards)
	kernel.Flags, rest.Flags = splitRecs(cs.Flags)
	kernel.Removals, rest.Removals = splitRecs(cs.Removals)
	kernel.ShlibRemovals, rest.ShlibRemovals = splitRecs(cs.ShlibRemovals)
	return kernel, rest
}

// Empty reports whether cs has nothing at all to do.
func (cs ChangeSet) Empty() bool {
	return len(cs.Dirs) == 0 && len(cs.Files) == 0 && len(cs.Syms) == 0 &&
		len(cs.Hards) == 0 && len(cs.Removals) == 0 && len(cs.ShlibRemovals) == 0
}
