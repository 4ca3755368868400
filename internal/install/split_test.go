package install

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

func TestBuildChangeSetClassifiesByKind(t *testing.T) {
	cur := metadata.NewSet()
	new := metadata.NewSet()

	new.Add(metadata.NewDirectory("/usr/local", 0, 0, 0o755, 0))
	new.Add(metadata.NewFile("/usr/bin/sh", 0, 0, 0o755, 0, hash.SumBytes([]byte("sh"))))
	new.Add(metadata.NewSymlink("/usr/bin/ksh", "/usr/bin/sh", 0, 0, 0o755, 0))
	new.Add(metadata.NewHardlink("/bin/rcp", "/bin/cp"))

	cur.Add(metadata.NewFile("/usr/obsolete", 0, 0, 0o644, 0, hash.SumBytes([]byte("old"))))

	cs := BuildChangeSet(cur, new)

	require.Len(t, cs.Dirs, 1)
	assert.Equal(t, "/usr/local", cs.Dirs[0].Path())

	require.Len(t, cs.Files, 1)
	assert.Equal(t, "/usr/bin/sh", cs.Files[0].Path())

	require.Len(t, cs.Syms, 1)
	assert.Equal(t, "/usr/bin/ksh", cs.Syms[0].Path())

	require.Len(t, cs.Hards, 1)
	assert.Equal(t, "/bin/rcp", cs.Hards[0].Path())

	require.Len(t, cs.Removals, 1)
	assert.Equal(t, "/usr/obsolete", cs.Removals[0].Path())
}

func TestBuildChangeSetExplicitAbsentRemoves(t *testing.T) {
	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/etc/gone", 0, 0, 0o644, 0, hash.SumBytes([]byte("x"))))

	new := metadata.NewSet()
	new.Add(metadata.NewAbsent("/etc/gone"))

	cs := BuildChangeSet(cur, new)
	require.Len(t, cs.Removals, 1)
	assert.Equal(t, "/etc/gone", cs.Removals[0].Path())
	assert.Empty(t, cs.Files)
}

func TestBuildChangeSetOrdersLinkerThenShlibThenRest(t *testing.T) {
	new := metadata.NewSet()
	new.Add(metadata.NewFile("/usr/bin/vi", 0, 0, 0o755, 0, hash.SumBytes([]byte("vi"))))
	new.Add(metadata.NewFile("/usr/lib/libc.so.7", 0, 0, 0o755, 0, hash.SumBytes([]byte("libc"))))
	new.Add(metadata.NewFile("/libexec/ld-elf.so.1", 0, 0, 0o755, 0, hash.SumBytes([]byte("ld"))))

	cs := BuildChangeSet(metadata.NewSet(), new)

	require.Len(t, cs.Files, 3)
	assert.Equal(t, "/libexec/ld-elf.so.1", cs.Files[0].Path())
	assert.Equal(t, "/usr/lib/libc.so.7", cs.Files[1].Path())
	assert.Equal(t, "/usr/bin/vi", cs.Files[2].Path())
}

func TestBuildChangeSetDefersShlibRemovals(t *testing.T) {
	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/usr/lib/libold.so.3", 0, 0, 0o755, 0, hash.SumBytes([]byte("old"))))
	cur.Add(metadata.NewFile("/etc/stale.conf", 0, 0, 0o644, 0, hash.SumBytes([]byte("stale"))))

	cs := BuildChangeSet(cur, metadata.NewSet())

	require.Len(t, cs.ShlibRemovals, 1)
	assert.Equal(t, "/usr/lib/libold.so.3", cs.ShlibRemovals[0].Path())
	require.Len(t, cs.Removals, 1)
	assert.Equal(t, "/etc/stale.conf", cs.Removals[0].Path())
}

func TestBuildChangeSetRemovalsDeepestFirst(t *testing.T) {
	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/a/b/c", 0, 0, 0o644, 0, hash.SumBytes([]byte("c"))))
	cur.Add(metadata.NewDirectory("/a/b", 0, 0, 0o755, 0))
	cur.Add(metadata.NewDirectory("/a", 0, 0, 0o755, 0))

	cs := BuildChangeSet(cur, metadata.NewSet())

	require.Len(t, cs.Removals, 3)
	assert.Equal(t, "/a/b/c", cs.Removals[0].Path())
	assert.Equal(t, "/a/b", cs.Removals[1].Path())
	assert.Equal(t, "/a", cs.Removals[2].Path())
}

func TestChangeSetKernelOnly(t *testing.T) {
	new := metadata.NewSet()
	new.Add(metadata.NewFile("/boot/kernel/kernel", 0, 0, 0o755, 0, hash.SumBytes([]byte("k"))))
	new.Add(metadata.NewFile("/usr/bin/vi", 0, 0, 0o755, 0, hash.SumBytes([]byte("vi"))))

	cs := BuildChangeSet(metadata.NewSet(), new)
	kernel, rest := cs.KernelOnly("/boot/kernel")

	require.Len(t, kernel.Files, 1)
	assert.Equal(t, "/boot/kernel/kernel", kernel.Files[0].Path())
	require.Len(t, rest.Files, 1)
	assert.Equal(t, "/usr/bin/vi", rest.Files[0].Path())
}

func TestChangeSetEmpty(t *testing.T) {
	assert.True(t, ChangeSet{}.Empty())
	assert.False(t, BuildChangeSet(metadata.NewSet(), func() *metadata.Set {
		s := metadata.NewSet()
		s.Add(metadata.NewDirectory("/x", 0, 0, 0o755, 0))
		return s
	}()).Empty())
}
