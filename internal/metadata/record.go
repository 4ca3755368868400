// Package metadata implements the typed manifest record model:
// a closed tagged variant over a path (File, Hardlink,
// Directory, Symlink, Absent), grouped into components with hierarchical
// prefix matching, plus the pipe-delimited text codec the metadata index
// files use, reproduced bit-exact.
package metadata

import (
	"github.com/yonasBSD/freebsd-godate/internal/hash"
)

// Kind identifies which variant a Record holds.
type Kind byte

const (
	KindFile Kind = iota
	KindHardlink
	KindDirectory
	KindSymlink
	KindAbsent
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindHardlink:
		return "hardlink"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Record is a closed tagged variant over a path, matching five
// cases exactly. Only the fields relevant to Kind are meaningful; the
// zero value of the rest is not an error, callers must not read fields
// outside of the relevant Kind's contract (enforced by the accessor
// methods, not by separate Go types, so Records stay comparable and
// cheap to copy — a deliberate departure from an interface-per-case
// hierarchy, per design notes).
type Record struct {
	kind Kind
	path string

	// File, Directory, Symlink
	uid, gid uint32
	mode     uint32 // 12-bit permission bits
	flags    uint32 // kernel/immutable-style bits

	// File only
	sum hash.Hash

	// Hardlink, Symlink: target path. For Hardlink this is the path of
	// another File in the same manifest set; for
	// Symlink it is the link's target text, which is not itself
	// validated against the set.
	target string
}

// Path returns the record's path, relative to the scanned base
// directory.
func (r Record) Path() string { return r.path }

// Kind returns which variant r holds.
func (r Record) Kind() Kind { return r.kind }

// Owner returns (uid, gid) for File, Directory, and Symlink records. It
// is meaningless for Hardlink and Absent.
func (r Record) Owner() (uid, gid uint32) { return r.uid, r.gid }

// Mode returns the 12-bit permission mode for File, Directory, and
// Symlink records.
func (r Record) Mode() uint32 { return r.mode }

// Flags returns the kernel flags bitmask for File, Directory, and
// Symlink records.
func (r Record) Flags() uint32 { return r.flags }

// Sum returns the content hash of a File record. It is the zero Hash for
// every other Kind — Hardlink equality ignores hashes, so
// callers must not rely on Sum for hardlinks.
func (r Record) Sum() hash.Hash { return r.sum }

// Target returns the link target of a Hardlink (another path in the
// same manifest) or Symlink (arbitrary target text) record.
func (r Record) Target() string { return r.target }

// NewFile constructs a File record.
func NewFile(path string, uid, gid, mode, flags uint32, sum hash.Hash) Record {
	return Record{kind: KindFile, path: path, uid: uid, gid: gid, mode: mode, flags: flags, sum: sum}
}

// NewHardlink constructs a Hardlink record pointing at targetPath, which
// must name a File in the same Metadata set when the set is an
// authoritative manifest; scanner output is exempt, since a freshly
// scanned hardlink target may not have been scanned yet.
func NewHardlink(path, targetPath string) Record {
	return Record{kind: KindHardlink, path: path, target: targetPath}
}

// NewDirectory constructs a Directory record.
func NewDirectory(path string, uid, gid, mode, flags uint32) Record {
	return Record{kind: KindDirectory, path: path, uid: uid, gid: gid, mode: mode, flags: flags}
}

// NewSymlink constructs a Symlink record.
func NewSymlink(path, target string, uid, gid, mode, flags uint32) Record {
	return Record{kind: KindSymlink, path: path, target: target, uid: uid, gid: gid, mode: mode, flags: flags}
}

// NewAbsent constructs an Absent record: a sentinel meaning "this path
// is expected not to exist".
func NewAbsent(path string) Record {
	return Record{kind: KindAbsent, path: path}
}

// HasFlags reports whether r is a kind that carries flags and has any
// bit set (used to build the final flags-setting pass).
func (r Record) HasFlags() bool {
	switch r.kind {
	case KindFile, KindDirectory, KindSymlink:
		return r.flags != 0
	default:
		return false
	}
}

// EqualOptions controls the privilege-sensitive parts of Equal:
// equality on File/Dir/Symlink may ignore uid/gid when run without
// elevated privilege.
type EqualOptions struct {
	CompareOwner bool
}

// Equal reports whether a and b describe the same on-disk state under
// opts. Records of different Kind, or different Path, are never equal.
// Hardlink equality ignores hashes (a link has no content
// of its own) — it compares only target path.
func Equal(a, b Record, opts EqualOptions) bool {
	if a.kind != b.kind || a.path != b.path {
		return false
	}
	switch a.kind {
	case KindAbsent:
		return true
	case KindHardlink:
		return a.target == b.target
	case KindFile:
		if a.sum != b.sum {
			return false
		}
		return sameFileMeta(a, b, opts)
	case KindDirectory, KindSymlink:
		if a.kind == KindSymlink && a.target != b.target {
			return false
		}
		return sameFileMeta(a, b, opts)
	default:
		return false
	}
}

func sameFileMeta(a, b Record, opts EqualOptions) bool {
	if opts.CompareOwner && (a.uid != b.uid || a.gid != b.gid) {
		return false
	}
	return a.mode == b.mode && a.flags == b.flags
}

// WithOwnerModeFlags returns a copy of r with its owner/mode/flags fields
// replaced, keeping kind, path, sum, and target unchanged. Used by the
// keep-modified-metadata step to graft cur's local
// customization onto new's record without disturbing new's content.
func WithOwnerModeFlags(r Record, uid, gid, mode, flags uint32) Record {
	r.uid, r.gid, r.mode, r.flags = uid, gid, mode, flags
	return r
}

// WithSum returns a copy of r, a File record, with its content hash
// replaced, keeping path/owner/mode/flags unchanged. Used by the merge
// stage to swap a File's record for its merged content's
// hash once the merge is resolved.
func WithSum(r Record, sum hash.Hash) Record {
	r.sum = sum
	return r
}

// DiffKind enumerates the field-level mismatches Diff can report,
// mirroring freebsd-update's MetadataLineDiff (src/metadata/line.rs).
type DiffKind int

const (
	DiffSum DiffKind = iota
	DiffOwner
	DiffMode
	DiffFlags
	DiffTarget
	DiffKindMismatch
)

// Diff describes one respect in which two same-path records differ.
type Diff struct {
	Field DiffKind
}

// CompareFields returns every respect in which a and b differ. It is
// total on equal Kind and returns a single DiffKindMismatch entry when
// Kind differs, rather than erroring — used by check-sys to describe
// drift in detail.
func CompareFields(a, b Record, opts EqualOptions) []Diff {
	if a.kind != b.kind {
		return []Diff{{Field: DiffKindMismatch}}
	}

	var diffs []Diff
	switch a.kind {
	case KindAbsent:
		return nil
	case KindHardlink:
		if a.target != b.target {
			diffs = append(diffs, Diff{Field: DiffTarget})
		}
		return diffs
	case KindFile:
		if a.sum != b.sum {
			diffs = append(diffs, Diff{Field: DiffSum})
		}
	case KindSymlink:
		if a.target != b.target {
			diffs = append(diffs, Diff{Field: DiffTarget})
		}
	}

	if opts.CompareOwner && (a.uid != b.uid || a.gid != b.gid) {
		diffs = append(diffs, Diff{Field: DiffOwner})
	}
	if a.mode != b.mode {
		diffs = append(diffs, Diff{Field: DiffMode})
	}
	if a.flags != b.flags {
		diffs = append(diffs, Diff{Field: DiffFlags})
	}
	return diffs
}
