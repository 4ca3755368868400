package metadata

import (
	"regexp"
	"sort"
	"strings"

	"github.com/emirpasic/gods/v2/maps/treemap"
	"github.com/emirpasic/gods/v2/sets/hashset"
)

// Set is the per-component collection of Records, the metadata index's
// own term for it: at most one Record per path, enforced
// by construction — Add overwrites any existing Record at the same
// path, since a given path appears under at most one variant.
type Set struct {
	byPath *treemap.Map[string, Record]
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byPath: treemap.New[string, Record]()}
}

// Add inserts or replaces the Record at its path.
func (s *Set) Add(r Record) {
	s.byPath.Put(r.Path(), r)
}

// Remove deletes the Record at path, if present.
func (s *Set) Remove(path string) {
	s.byPath.Remove(path)
}

// Get returns the Record at path and whether one exists.
func (s *Set) Get(path string) (Record, bool) {
	return s.byPath.Get(path)
}

// Len returns the number of Records in s.
func (s *Set) Len() int {
	return s.byPath.Size()
}

// Paths returns every path in s, in sorted order.
func (s *Set) Paths() []string {
	keys := s.byPath.Keys()
	sort.Strings(keys)
	return keys
}

// PathSet returns every path in s as a hash set, for the intersection
// and membership tests and describe.
func (s *Set) PathSet() *hashset.Set[string] {
	hs := hashset.New[string]()
	for _, p := range s.Paths() {
		hs.Add(p)
	}
	return hs
}

// Each calls fn for every Record in s, in sorted path order.
func (s *Set) Each(fn func(Record)) {
	for _, p := range s.Paths() {
		r, _ := s.byPath.Get(p)
		fn(r)
	}
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	out := NewSet()
	s.Each(out.Add)
	return out
}

// FileTarget resolves a Hardlink's target path to the File Record it
// names. A Hardlink's target must resolve to a File in the
// same set when the set is an authoritative manifest; for scanner
// output a missing target is tolerated and ok is false rather than
// an error.
func (s *Set) FileTarget(h Record) (Record, bool) {
	if h.Kind() != KindHardlink {
		return Record{}, false
	}
	target, ok := s.Get(h.Target())
	if !ok || target.Kind() != KindFile {
		return Record{}, false
	}
	return target, true
}

// RemoveMatching removes from s every path that also appears in other,
// EXCEPT a Hardlink whose target File remains in s — 's
// invariant is exactly this carve-out:
//
//	a.remove_matching(b); a.allpaths ∩ b.allpaths == ∅
//	  (except hardlinks whose target file remains in a)
func (s *Set) RemoveMatching(other *Set) {
	for _, p := range s.Paths() {
		if _, ok := other.Get(p); !ok {
			continue
		}
		r, _ := s.Get(p)
		if r.Kind() == KindHardlink {
			if _, targetStillPresent := s.FileTarget(r); targetStillPresent {
				continue
			}
		}
		s.Remove(p)
	}
}

// KeepMatching removes from s every path that does NOT match any regex
// in patterns (regex_lite's "keep_paths_matching", freebsd-update
// src/metadata/group.rs).
func (s *Set) KeepMatching(patterns []*regexp.Regexp) {
	for _, p := range s.Paths() {
		if !anyMatch(patterns, p) {
			s.Remove(p)
		}
	}
}

// RemovePathsMatching removes from s every path that matches any regex
// in patterns.
func (s *Set) RemovePathsMatching(patterns []*regexp.Regexp) {
	for _, p := range s.Paths() {
		if anyMatch(patterns, p) {
			s.Remove(p)
		}
	}
}

func anyMatch(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Group is MetadataGroup: component -> Set, with hierarchical
// prefix matching ("listing `group` matches every `group/*`; listing
// `group/sub` matches only that one").
type Group struct {
	byComponent *treemap.Map[Component, *Set]
}

// NewGroup returns an empty Group.
func NewGroup() *Group {
	return &Group{byComponent: treemap.New[Component, *Set]()}
}

// AddLine inserts ln's Record into its Component's Set, creating the
// Set if needed.
func (g *Group) AddLine(ln Line) {
	s, ok := g.byComponent.Get(ln.Component)
	if !ok {
		s = NewSet()
		g.byComponent.Put(ln.Component, s)
	}
	s.Add(ln.Record)
}

// FromLines builds a Group from a parsed metadata blob.
func FromLines(lines []Line) *Group {
	g := NewGroup()
	for _, ln := range lines {
		g.AddLine(ln)
	}
	return g
}

// Components returns every component name present in g.
func (g *Group) Components() []Component {
	keys := g.byComponent.Keys()
	out := make([]Component, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// matchesPrefix implements the hierarchical component match: `have`
// matches `want` when have == want or have is a `want/`-prefixed
// subgroup.
func matchesPrefix(have, want Component) bool {
	if have == want {
		return true
	}
	return strings.HasPrefix(string(have), string(want)+"/")
}

// Select returns the union, as a single flat Set, of every component
// matching any of names under 's prefix-match rule.
func (g *Group) Select(names ...Component) *Set {
	out := NewSet()
	for it := g.byComponent.Iterator(); it.Next(); {
		comp, set := it.Key(), it.Value()
		for _, want := range names {
			if matchesPrefix(comp, want) {
				set.Each(out.Add)
				break
			}
		}
	}
	return out
}

// Flatten merges every component's Set into one flat Set, discarding
// component boundaries (used once the diff engine has already applied
// the component heuristic).
func (g *Group) Flatten() *Set {
	return g.Select(g.Components()...)
}

// ComponentsInstalled implements (the "component
// heuristic"): a component is considered installed when at least half
// of its declared paths are present (by membership in existing).
func (g *Group) ComponentsInstalled(existing *hashset.Set[string]) []Component {
	var installed []Component
	for it := g.byComponent.Iterator(); it.Next(); {
		comp, set := it.Key(), it.Value()
		total := 0
		present := 0
		set.Each(func(r Record) {
			if r.Kind() == KindAbsent {
				return
			}
			total++
			if existing.Contains(r.Path()) {
				present++
			}
		})
		if total == 0 || present*2 >= total {
			installed = append(installed, comp)
		}
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i] < installed[j] })
	return installed
}

// KeepComponents discards every component of g that does not match (by
// prefix rule) any of keep.
func (g *Group) KeepComponents(keep []Component) {
	for _, comp := range g.Components() {
		keepIt := false
		for _, want := range keep {
			if matchesPrefix(comp, want) {
				keepIt = true
				break
			}
		}
		if !keepIt {
			g.byComponent.Remove(comp)
		}
	}
}
