package state_test

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func TestDirNameIsStableBase64(t *testing.T) {
	a := state.DirName("/")
	b := state.DirName("/")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, state.DirName("/mnt/other"))
}

func TestLoadMissingReturnsErrNoState(t *testing.T) {
	fs := memfs.New()
	_, err := state.Load(fs, "/var/db/freebsd-godate/state.xyz")
	assert.ErrorIs(t, err, state.ErrNoState)
}

func TestSaveLoadRoundTripSimpleUpdate(t *testing.T) {
	fs := memfs.New()
	dir := "/var/db/freebsd-godate/" + state.DirName("/")

	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/etc/motd", 0, 0, 0644, 0, hash.SumBytes([]byte("cur"))))
	new := metadata.NewSet()
	new.Add(metadata.NewFile("/etc/motd", 0, 0, 0644, 0, hash.SumBytes([]byte("new"))))

	mani := state.NewSimpleUpdate("13.2-RELEASE-p3", cur, new)
	st := &state.State{Manifest: mani}

	require.NoError(t, state.Save(fs, dir, st))

	got, err := state.Load(fs, dir)
	require.NoError(t, err)
	require.NotNil(t, got.Manifest)
	assert.Equal(t, state.KindSimpleUpdate, got.Manifest.Kind())
	assert.Equal(t, "13.2-RELEASE-p3", got.Manifest.Version())
	assert.Equal(t, 1, got.Manifest.Cur().Len())
}

func TestSaveLoadRoundTripVersionUpgradeWithMerges(t *testing.T) {
	fs := memfs.New()
	dir := "/state"

	cur := metadata.NewSet()
	new := metadata.NewSet()
	clean := map[string]state.MergeRecord{
		"/etc/hosts": {Old: hash.SumBytes([]byte("o")), New: hash.SumBytes([]byte("n")), Cur: hash.SumBytes([]byte("c")), Res: hash.SumBytes([]byte("r"))},
	}
	conflict := map[string]state.MergeRecord{
		"/etc/rc.conf": {Old: hash.SumBytes([]byte("o2")), New: hash.SumBytes([]byte("n2")), Cur: hash.SumBytes([]byte("c2"))},
	}
	mani := state.NewVersionUpgrade("14.0-RELEASE", cur, new, clean, conflict)
	require.NoError(t, state.Save(fs, dir, &state.State{Manifest: mani}))

	got, err := state.Load(fs, dir)
	require.NoError(t, err)
	assert.Equal(t, state.KindVersionUpgrade, got.Manifest.Kind())
	assert.Equal(t, 1, len(got.Manifest.MergeClean()))
	assert.Equal(t, 1, got.Manifest.NumConflicts())
	assert.False(t, got.Manifest.InProgress())
}

func TestResolveConflictMovesToClean(t *testing.T) {
	conflict := map[string]state.MergeRecord{
		"/etc/rc.conf": {Old: hash.SumBytes([]byte("o")), New: hash.SumBytes([]byte("n")), Cur: hash.SumBytes([]byte("c"))},
	}
	mani := state.NewVersionUpgrade("14.0-RELEASE", metadata.NewSet(), metadata.NewSet(), nil, conflict)

	res := hash.SumBytes([]byte("resolved"))
	require.NoError(t, mani.ResolveConflict("/etc/rc.conf", res))

	assert.Equal(t, 0, mani.NumConflicts())
	require.Contains(t, mani.MergeClean(), "/etc/rc.conf")
	assert.Equal(t, res, mani.MergeClean()["/etc/rc.conf"].Res)
}

func TestManifestSummaryIgnoresAbsentBookkeeping(t *testing.T) {
	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/etc/keep", 0, 0, 0644, 0, hash.Hash{}))
	cur.Add(metadata.NewFile("/etc/drop", 0, 0, 0644, 0, hash.Hash{}))
	cur.Add(metadata.NewAbsent("/etc/never-had"))

	new := metadata.NewSet()
	new.Add(metadata.NewFile("/etc/keep", 0, 0, 0644, 0, hash.Hash{}))
	new.Add(metadata.NewFile("/etc/added", 0, 0, 0644, 0, hash.Hash{}))

	mani := state.NewSimpleUpdate("x", cur, new)
	sum := mani.Summary()

	assert.Equal(t, []string{"/etc/added"}, sum.Added)
	assert.Equal(t, []string{"/etc/drop"}, sum.Removed)
	assert.Equal(t, []string{"/etc/keep"}, sum.Updated)
}

func TestClearRemovesStatefile(t *testing.T) {
	fs := memfs.New()
	mani := state.NewSimpleUpdate("x", metadata.NewSet(), metadata.NewSet())
	require.NoError(t, state.Save(fs, "/state", &state.State{Manifest: mani}))

	require.NoError(t, state.Clear(fs, "/state"))
	_, err := state.Load(fs, "/state")
	assert.ErrorIs(t, err, state.ErrNoState)
}
