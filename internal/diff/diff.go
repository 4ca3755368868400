// Package diff implements the decision procedure calls the
// diff & filter engine: given old/new/cur Metadata sets and a handful of
// policy inputs, it decides what to leave alone, what to merge, and what
// change set the installer should apply. Grounded on
// freebsd-update's src/core/filter.rs (modified_present /
// apply_modified_present) and src/cmd/upgrade.rs for the surrounding
// merge-candidate selection and idempotent-filter steps, with the
// three-set comparison shape borrowed from go-git's tree_diff.go.
package diff

import (
	"regexp"

	"github.com/emirpasic/gods/v2/sets/hashset"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// Policy bundles the regex/flag inputs the engine consults. The
// component heuristic is not part of Policy: it
// operates on a metadata.Group rather than a flat Set, and is applied by
// the caller before building old/new/cur via
// metadata.Group.ComponentsInstalled/KeepComponents.
type Policy struct {
	UpdateIfUnmodified   []*regexp.Regexp
	MergeChanges         []*regexp.Regexp
	DenyMerge            *hashset.Set[string]
	KeepModifiedMetadata bool
	CompareOwner         bool
}

// MergeCandidate is a path selected by step 3 (merge-changes) for a
// three-way merge, carrying the old-release record to merge from.
type MergeCandidate struct {
	Path string
	Old  metadata.Record
}

// Update describes a path present in both cur and new after filtering.
type Update struct {
	Path string
	Cur  metadata.Record
	New  metadata.Record
}

// Result is the change set the installer consumes: removals (in cur,
// not in new), additions (in new, not in cur), updates (in both), and
// the subset of updates whose Kind differs between cur and new.
type Result struct {
	Removals    []metadata.Record
	Additions   []metadata.Record
	Updates     []Update
	TypeChanges []Update
}

// Run executes steps 1, 2, 3, and 5 in place against old, new,
// and cur (step 4, the component heuristic, is the caller's
// responsibility — see Policy), then returns the resulting change set.
// cvOld ("very old", the pre-patch-level release) is optional and may be
// nil.
func Run(old, new, cur *metadata.Set, policy Policy, cvOld *metadata.Set) (*Result, Outcome) {
	var out Outcome

	candidates := selectMergeCandidates(old, new, cur, cvOld, policy)
	ignore := hashset.New[string]()
	for _, c := range candidates {
		ignore.Add(c.Path)
	}
	out.MergeCandidates = candidates

	mp := modifiedPresent(old, new, cur, policy.UpdateIfUnmodified, ignore, cvOld)
	out.ModifiedFiles = applyModifiedPresent(mp, old, new, cur)

	if policy.KeepModifiedMetadata {
		keepModifiedMetadata(old, new, cur, policy.CompareOwner)
	}

	idempotentFilter(new, cur, policy.CompareOwner)

	return changeSet(cur, new), out
}

// Outcome reports side information from Run useful for user-facing
// summaries and for driving the merge stage, without polluting Result
// (which is specifically the installer's change set).
type Outcome struct {
	MergeCandidates []MergeCandidate
	ModifiedFiles   []string
}

// selectMergeCandidates handles each path
// matching MergeChanges that is present as a File in all three of old/new/cur,
// whose cur hash matches none of old/new/veryold, stage it for merging
// — unless it's on the deny list. Mirrors upgrade.rs's to_merge
// collection loop exactly, including its choice of "old" as the merge
// base.
func selectMergeCandidates(old, new, cur, cvOld *metadata.Set, policy Policy) []MergeCandidate {
	if len(policy.MergeChanges) == 0 {
		return nil
	}

	var out []MergeCandidate
	for _, p := range cur.Paths() {
		if !anyMatch(policy.MergeChanges, p) {
			continue
		}
		if policy.DenyMerge != nil && policy.DenyMerge.Contains(p) {
			continue
		}

		cf, ok := cur.Get(p)
		if !ok || cf.Kind() != metadata.KindFile {
			continue
		}
		of, ok := old.Get(p)
		if !ok || of.Kind() != metadata.KindFile {
			continue
		}
		nf, ok := new.Get(p)
		if !ok || nf.Kind() != metadata.KindFile {
			continue
		}

		ch, oh, nh := cf.Sum(), of.Sum(), nf.Sum()
		if ch == oh || ch == nh {
			continue
		}
		if cvOld != nil {
			if vof, ok := cvOld.Get(p); ok && vof.Kind() == metadata.KindFile && vof.Sum() == ch {
				continue
			}
		}

		out = append(out, MergeCandidate{Path: p, Old: of})
	}
	return out
}

// modifiedPresentResult holds the paths modified_present decided to
// leave alone, prior to apply_modified_present clearing them out.
type modifiedPresentResult struct {
	files  []string
	hlinks []string
	dashes []string
}

// modifiedPresent implements, matching filter.rs's
// modified_present exactly: paths matching UpdateIfUnmodified whose cur
// hash (or, for hardlinks, target) differs from both old and new (and
// veryold, if supplied) are "modified" and must be left untouched by
// the rest of the pipeline. ignore excludes paths already claimed by
// the merge stage.
func modifiedPresent(old, new, cur *metadata.Set, uium []*regexp.Regexp, ignore *hashset.Set[string], cvOld *metadata.Set) modifiedPresentResult {
	var res modifiedPresentResult

	for _, p := range cur.Paths() {
		if !anyMatch(uium, p) || ignore.Contains(p) {
			continue
		}
		r, _ := cur.Get(p)
		switch r.Kind() {
		case metadata.KindFile:
			ch := r.Sum()
			if of, ok := old.Get(p); ok && of.Kind() == metadata.KindFile && of.Sum() == ch {
				continue
			}
			if nf, ok := new.Get(p); ok && nf.Kind() == metadata.KindFile && nf.Sum() == ch {
				continue
			}
			if cvOld != nil {
				if vof, ok := cvOld.Get(p); ok && vof.Kind() == metadata.KindFile && vof.Sum() == ch {
					continue
				}
			}
			res.files = append(res.files, p)

		case metadata.KindHardlink:
			if _, ok := old.Get(p); ok {
				continue
			}
			if _, ok := new.Get(p); ok {
				continue
			}
			if !containsPath(res.files, r.Target()) {
				continue
			}
			if cvOld != nil {
				if _, ok := cvOld.Get(p); ok {
					continue
				}
			}
			res.hlinks = append(res.hlinks, p)
		}
	}

	// Dash (Absent) lines in cur not mirrored by a dash in old are a
	// local deletion of something old/new expected present: keep the
	// local deletion, i.e. drop the path from new so it is not reinstalled.
	for _, p := range cur.Paths() {
		r, _ := cur.Get(p)
		if r.Kind() != metadata.KindAbsent {
			continue
		}
		if or, ok := old.Get(p); ok && or.Kind() == metadata.KindAbsent {
			continue
		}
		if cvOld != nil {
			if vor, ok := cvOld.Get(p); ok && vor.Kind() == metadata.KindAbsent {
				continue
			}
		}
		if _, found := old.Get(p); found {
			res.dashes = append(res.dashes, p)
		}
	}

	return res
}

func containsPath(paths []string, p string) bool {
	for _, q := range paths {
		if q == p {
			return true
		}
	}
	return false
}

// applyModifiedPresent removes the decided paths from all three sets
// (dashes only from new), returning the affected paths for display.
func applyModifiedPresent(mp modifiedPresentResult, old, new, cur *metadata.Set) []string {
	var affected []string
	for _, p := range mp.files {
		old.Remove(p)
		new.Remove(p)
		cur.Remove(p)
		affected = append(affected, p)
	}
	for _, p := range mp.hlinks {
		old.Remove(p)
		new.Remove(p)
		cur.Remove(p)
		affected = append(affected, p)
	}
	for _, p := range mp.dashes {
		new.Remove(p)
	}
	return affected
}

// keepModifiedMetadata handles File/Dir/Symlink
// entries where cur differs from old only in owner/mode/flags: graft
// cur's metadata fields onto new so the install preserves the local
// customization.
func keepModifiedMetadata(old, new, cur *metadata.Set, compareOwner bool) {
	opts := metadata.EqualOptions{CompareOwner: compareOwner}
	for _, p := range cur.Paths() {
		cr, _ := cur.Get(p)
		if cr.Kind() != metadata.KindFile && cr.Kind() != metadata.KindDirectory && cr.Kind() != metadata.KindSymlink {
			continue
		}
		or, ok := old.Get(p)
		if !ok || or.Kind() != cr.Kind() {
			continue
		}
		if metadata.Equal(cr, or, opts) {
			continue
		}
		diffs := metadata.CompareFields(cr, or, opts)
		if !onlyMetaDiffs(diffs) {
			continue
		}
		nr, ok := new.Get(p)
		if !ok {
			continue
		}
		uid, gid := cr.Owner()
		new.Add(metadata.WithOwnerModeFlags(nr, uid, gid, cr.Mode(), cr.Flags()))
	}
}

func onlyMetaDiffs(diffs []metadata.Diff) bool {
	for _, d := range diffs {
		switch d.Field {
		case metadata.DiffOwner, metadata.DiffMode, metadata.DiffFlags:
		default:
			return false
		}
	}
	return true
}

// idempotentFilter drops paths from both
// cur and new when they're byte-identical for their kind, since there's
// nothing left to do. A Hardlink counts as identical only when its
// target File is also identical (a changed target forces relink).
func idempotentFilter(new, cur *metadata.Set, compareOwner bool) {
	opts := metadata.EqualOptions{CompareOwner: compareOwner}
	for _, p := range cur.Paths() {
		cr, ok := cur.Get(p)
		if !ok {
			continue
		}
		nr, ok := new.Get(p)
		if !ok || nr.Kind() != cr.Kind() {
			continue
		}

		same := metadata.Equal(cr, nr, opts)
		if same && cr.Kind() == metadata.KindHardlink {
			ct, ctok := cur.FileTarget(cr)
			nt, ntok := new.FileTarget(nr)
			same = ctok && ntok && metadata.Equal(ct, nt, opts)
		}
		if same {
			cur.Remove(p)
			new.Remove(p)
		}
	}
}

// changeSet computes the installer's view: removals (cur only),
// additions (new only), updates (both), and the subset of updates whose
// Kind changed. An Absent record is bookkeeping for "checked, not
// there" rather than a real entry, so it's treated as no-entry on
// whichever side holds it.
func changeSet(cur, new *metadata.Set) *Result {
	res := &Result{}
	seen := make(map[string]bool)

	visit := func(paths []string) {
		for _, p := range paths {
			if seen[p] {
				continue
			}
			seen[p] = true

			cr, curOK := cur.Get(p)
			nr, newOK := new.Get(p)
			effCur := curOK && cr.Kind() != metadata.KindAbsent
			effNew := newOK && nr.Kind() != metadata.KindAbsent

			switch {
			case effCur && effNew:
				u := Update{Path: p, Cur: cr, New: nr}
				res.Updates = append(res.Updates, u)
				if cr.Kind() != nr.Kind() {
					res.TypeChanges = append(res.TypeChanges, u)
				}
			case effCur && !effNew:
				res.Removals = append(res.Removals, cr)
			case !effCur && effNew:
				res.Additions = append(res.Additions, nr)
			}
		}
	}

	visit(cur.Paths())
	visit(new.Paths())

	return res
}

func anyMatch(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
