package metadata

import "github.com/yonasBSD/freebsd-godate/internal/hash"

// Index is MetadataIndex: a path -> hash lookup used by the
// manifest-index client to answer "what hash does the server currently
// have for this path" without holding full Records in memory, and to
// classify a path as belonging to the old manifest, the new manifest,
// or both ("all").
type Index struct {
	all map[string]hash.Hash
	new map[string]hash.Hash
	old map[string]hash.Hash
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		all: make(map[string]hash.Hash),
		new: make(map[string]hash.Hash),
		old: make(map[string]hash.Hash),
	}
}

// AddOld records path's hash as it existed in the prior manifest.
func (ix *Index) AddOld(path string, sum hash.Hash) {
	ix.old[path] = sum
	ix.all[path] = sum
}

// AddNew records path's hash as it exists in the target manifest.
func (ix *Index) AddNew(path string, sum hash.Hash) {
	ix.new[path] = sum
	ix.all[path] = sum
}

// Old returns path's hash in the prior manifest, if any.
func (ix *Index) Old(path string) (hash.Hash, bool) {
	h, ok := ix.old[path]
	return h, ok
}

// New returns path's hash in the target manifest, if any.
func (ix *Index) New(path string) (hash.Hash, bool) {
	h, ok := ix.new[path]
	return h, ok
}

// Lookup returns path's hash from whichever manifest knows it, new
// taking precedence, plus whether it was found in either.
func (ix *Index) Lookup(path string) (hash.Hash, bool) {
	if h, ok := ix.new[path]; ok {
		return h, true
	}
	h, ok := ix.old[path]
	return h, ok
}

// Changed reports whether path's hash differs between the old and new
// manifests. A path present in only one manifest counts as changed.
func (ix *Index) Changed(path string) bool {
	oldSum, hadOld := ix.old[path]
	newSum, hadNew := ix.new[path]
	if hadOld != hadNew {
		return true
	}
	if !hadOld && !hadNew {
		return false
	}
	return oldSum != newSum
}

// Len returns the number of distinct paths known to ix across both
// manifests.
func (ix *Index) Len() int {
	return len(ix.all)
}

// FromGroups builds an Index from the old and new MetadataGroups,
// indexing only File records (the only Kind carrying a content hash).
func FromGroups(oldGroup, newGroup *Group) *Index {
	ix := NewIndex()
	if oldGroup != nil {
		oldGroup.Flatten().Each(func(r Record) {
			if r.Kind() == KindFile {
				ix.AddOld(r.Path(), r.Sum())
			}
		})
	}
	if newGroup != nil {
		newGroup.Flatten().Each(func(r Record) {
			if r.Kind() == KindFile {
				ix.AddNew(r.Path(), r.Sum())
			}
		})
	}
	return ix
}
