package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

func TestRemoveUnchangedDropsMatchingPaths(t *testing.T) {
	content := []byte("same content")

	all := metadata.NewSet()
	all.Add(metadata.NewFile("/bin/sh", 0, 0, 0o755, 0, hash.SumBytes(content)))
	all.Add(metadata.NewFile("/bin/changed", 0, 0, 0o755, 0, hash.SumBytes([]byte("new"))))

	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/bin/sh", 0, 0, 0o755, 0, hash.SumBytes(content)))
	cur.Add(metadata.NewFile("/bin/changed", 0, 0, 0o755, 0, hash.SumBytes([]byte("old"))))

	removeUnchanged(all, cur, false)

	_, stillThere := all.Get("/bin/sh")
	assert.False(t, stillThere)
	_, changedRemains := all.Get("/bin/changed")
	assert.True(t, changedRemains)
}

func TestRemoveUnchangedLeavesPathsMissingFromSystem(t *testing.T) {
	all := metadata.NewSet()
	all.Add(metadata.NewFile("/bin/gone", 0, 0, 0o755, 0, hash.SumBytes([]byte("x"))))

	cur := metadata.NewSet()

	removeUnchanged(all, cur, false)

	_, stillThere := all.Get("/bin/gone")
	assert.True(t, stillThere)
}
