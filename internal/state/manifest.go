// Package state implements the pending-state store:
// a per-base-directory JSON file recording an in-flight fetch or
// upgrade so a later invocation can resume it. Grounded on
// freebsd-update's src/state.rs (the State/Manifest/ManiFetch/
// ManiUpgrade shape) and src/core/rtdirs.rs (the URL-safe-base64
// statedir naming).
package state

import (
	"fmt"
	"sort"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// Kind identifies which Manifest variant is pending.
type Kind byte

const (
	// KindSimpleUpdate is an intra-version fetch: apply in one pass,
	// no phasing, no merges (freebsd-update's ManiFetch).
	KindSimpleUpdate Kind = iota
	// KindVersionUpgrade is an inter-version upgrade: phased
	// kernel/world/cleanup install, may carry merge results
	// (freebsd-update's ManiUpgrade).
	KindVersionUpgrade
)

func (k Kind) String() string {
	switch k {
	case KindSimpleUpdate:
		return "simple-update"
	case KindVersionUpgrade:
		return "version-upgrade"
	default:
		return "unknown"
	}
}

// MergeRecord is the four-hash tuple recorded for
// every merged path, under either the clean or conflict map depending
// on outcome.
type MergeRecord struct {
	Old, New, Cur, Res hash.Hash
}

// Manifest is the pending manifest: a tagged variant over
// SimpleUpdate/VersionUpgrade, modeled as a single struct with a Kind
// tag and accessor methods — the same shape metadata.Record uses —
// rather than an interface hierarchy.
type Manifest struct {
	kind    Kind
	version string
	cur     *metadata.Set
	new     *metadata.Set

	kernelDone bool
	worldDone  bool

	mergeClean    map[string]MergeRecord
	mergeConflict map[string]MergeRecord
}

// NewSimpleUpdate builds a pending intra-version update manifest.
func NewSimpleUpdate(version string, cur, new *metadata.Set) *Manifest {
	return &Manifest{kind: KindSimpleUpdate, version: version, cur: cur, new: new}
}

// NewVersionUpgrade builds a pending inter-version upgrade manifest.
func NewVersionUpgrade(version string, cur, new *metadata.Set, mergeClean, mergeConflict map[string]MergeRecord) *Manifest {
	if mergeClean == nil {
		mergeClean = map[string]MergeRecord{}
	}
	if mergeConflict == nil {
		mergeConflict = map[string]MergeRecord{}
	}
	return &Manifest{
		kind: KindVersionUpgrade, version: version, cur: cur, new: new,
		mergeClean: mergeClean, mergeConflict: mergeConflict,
	}
}

func (m *Manifest) Kind() Kind            { return m.kind }
func (m *Manifest) Version() string       { return m.version }
func (m *Manifest) Cur() *metadata.Set    { return m.cur }
func (m *Manifest) New() *metadata.Set    { return m.new }
func (m *Manifest) KernelDone() bool      { return m.kernelDone }
func (m *Manifest) WorldDone() bool       { return m.worldDone }
func (m *Manifest) SetKernelDone()        { m.kernelDone = true }
func (m *Manifest) SetWorldDone()         { m.worldDone = true }

// MergeClean returns the successfully merged paths, nil for a
// SimpleUpdate.
func (m *Manifest) MergeClean() map[string]MergeRecord { return m.mergeClean }

// MergeConflict returns the still-conflicted paths, nil for a
// SimpleUpdate. The installer refuses to run while this is non-empty.
func (m *Manifest) MergeConflict() map[string]MergeRecord { return m.mergeConflict }

// NumConflicts reports how many merges still need resolving.
func (m *Manifest) NumConflicts() int { return len(m.mergeConflict) }

// ResolveConflict moves path from the
// conflict map to the clean map once the user has accepted a resolved
// version, recording its new Res hash.
func (m *Manifest) ResolveConflict(path string, res hash.Hash) error {
	rec, ok := m.mergeConflict[path]
	if !ok {
		return fmt.Errorf("state: %s has no pending conflict", path)
	}
	rec.Res = res
	delete(m.mergeConflict, path)
	if m.mergeClean == nil {
		m.mergeClean = map[string]MergeRecord{}
	}
	m.mergeClean[path] = rec
	return nil
}

// InProgress reports whether a VersionUpgrade is mid-phase — kernel
// installed, world not — the signal fetch/upgrade commands use to
// refuse starting a fresh run on top of one (freebsd-update's
// upgrade_in_progress).
func (m *Manifest) InProgress() bool {
	return m.kind == KindVersionUpgrade && m.kernelDone
}

// State describes the display string the phased installer
// shows the user between invocations.
func (m *Manifest) State() string {
	if m.kind == KindSimpleUpdate {
		return "ready to install"
	}
	switch {
	case !m.kernelDone:
		return "ready to begin install"
	case !m.worldDone:
		return "kernel installed, ready to install world"
	default:
		return "world installed, ready to clean up old shared libraries"
	}
}

// Summary is the human-facing overview of what a Manifest will do:
// added (in new, not cur), removed (in cur, not new), updated (in
// both), ignoring Absent bookkeeping entries on both sides.
type Summary struct {
	Added, Removed, Updated []string
}

// Summary computes m's Summary.
func (m *Manifest) Summary() Summary {
	curPaths := realPaths(m.cur)
	newPaths := realPaths(m.new)

	var sum Summary
	for p := range newPaths {
		if !curPaths[p] {
			sum.Added = append(sum.Added, p)
		}
	}
	for p := range curPaths {
		if !newPaths[p] {
			sum.Removed = append(sum.Removed, p)
		} else {
			sum.Updated = append(sum.Updated, p)
		}
	}
	sort.Strings(sum.Added)
	sort.Strings(sum.Removed)
	sort.Strings(sum.Updated)
	return sum
}

func realPaths(s *metadata.Set) map[string]bool {
	out := make(map[string]bool)
	if s == nil {
		return out
	}
	s.Each(func(r metadata.Record) {
		if r.Kind() != metadata.KindAbsent {
			out[r.Path()] = true
		}
	})
	return out
}
