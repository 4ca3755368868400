package install

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func baseConfig(t *testing.T) (Config, *objstore.Store) {
	t.Helper()
	fs := memfs.New()
	store := objstore.New(fs, "files")
	cfg := Config{
		FS:        fs,
		BaseDir:   "/",
		FilesDir:  "files",
		Limits:    pool.DefaultLimits(),
		Fsync:     true,
		BootDir:   "/boot",
		KernelDir: "/boot/kernel",
	}
	return cfg, store
}

func TestApplySimpleInstallsAndRemoves(t *testing.T) {
	cfg, store := baseConfig(t)

	newContent := []byte("echo new\n")
	sum := hash.SumBytes(newContent)
	require.NoError(t, store.Put(sum, bytes.NewReader(newContent)))

	require.NoError(t, util.WriteFile(cfg.FS, "/usr/local/bin/stale", []byte("old"), 0o755))

	cur := metadata.NewSet()
	cur.Add(metadata.NewFile("/usr/local/bin/stale", 0, 0, 0o755, 0, hash.SumBytes([]byte("old"))))

	new := metadata.NewSet()
	new.Add(metadata.NewFile("/usr/local/bin/fresh", 0, 0, 0o755, 0, sum))

	m := state.NewSimpleUpdate("13.2-RELEASE-p6", cur, new)

	require.NoError(t, Apply(context.Background(), cfg, m))

	f, err := cfg.FS.Open("/usr/local/bin/fresh")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, newContent, buf.Bytes())

	_, err = cfg.FS.Lstat("/usr/local/bin/stale")
	assert.Error(t, err)
}

func TestApplyRefusesWithUnresolvedConflicts(t *testing.T) {
	cfg, _ := baseConfig(t)
	m := state.NewVersionUpgrade("14.0-RELEASE", metadata.NewSet(), metadata.NewSet(), nil, map[string]state.MergeRecord{
		"/etc/rc.conf": {},
	})
	err := Apply(context.Background(), cfg, m)
	assert.Error(t, err)
}

func TestApplyRefusesWhenContentMissing(t *testing.T) {
	cfg, _ := baseConfig(t)
	new := metadata.NewSet()
	new.Add(metadata.NewFile("/usr/local/bin/fresh", 0, 0, 0o755, 0, hash.SumBytes([]byte("missing"))))

	m := state.NewSimpleUpdate("13.2-RELEASE-p6", metadata.NewSet(), new)
	err := Apply(context.Background(), cfg, m)
	assert.Error(t, err)
}

func TestApplyUpgradeStopsAfterKernelPhase(t *testing.T) {
	cfg, store := baseConfig(t)

	kernelContent := []byte("kernel bits")
	kernelSum := hash.SumBytes(kernelContent)
	require.NoError(t, store.Put(kernelSum, bytes.NewReader(kernelContent)))

	worldContent := []byte("vi bits")
	worldSum := hash.SumBytes(worldContent)
	require.NoError(t, store.Put(worldSum, bytes.NewReader(worldContent)))

	require.NoError(t, cfg.FS.MkdirAll("/boot/kernel", 0o755))
	require.NoError(t, util.WriteFile(cfg.FS, "/boot/kernel/kernel", []byte("old kernel"), 0o755))

	new := metadata.NewSet()
	new.Add(metadata.NewFile("/boot/kernel/kernel", 0, 0, 0o755, 0, kernelSum))
	new.Add(metadata.NewFile("/usr/bin/vi", 0, 0, 0o755, 0, worldSum))

	m := state.NewVersionUpgrade("14.0-RELEASE", metadata.NewSet(), new, nil, nil)

	require.NoError(t, Apply(context.Background(), cfg, m))

	assert.True(t, m.KernelDone())
	assert.False(t, m.WorldDone())

	kf, err := cfg.FS.Open("/boot/kernel/kernel")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(kf)
	kf.Close()
	assert.Equal(t, kernelContent, buf.Bytes())

	_, err = cfg.FS.Lstat("/usr/bin/vi")
	assert.Error(t, err, "world phase has not run yet")

	_, err = cfg.FS.Lstat("/boot/kernel.old/.freebsd-update")
	require.NoError(t, err, "kernel phase should have taken a backup")

	require.NoError(t, Apply(context.Background(), cfg, m))
	assert.True(t, m.WorldDone())

	_, err = cfg.FS.Lstat("/usr/bin/vi")
	require.NoError(t, err, "second call should run the world phase")
}

func TestApplyUpgradeAllRunsEveryPhase(t *testing.T) {
	cfg, store := baseConfig(t)
	cfg.All = true

	worldContent := []byte("vi bits")
	worldSum := hash.SumBytes(worldContent)
	require.NoError(t, store.Put(worldSum, bytes.NewReader(worldContent)))

	new := metadata.NewSet()
	new.Add(metadata.NewFile("/usr/bin/vi", 0, 0, 0o755, 0, worldSum))

	m := state.NewVersionUpgrade("14.0-RELEASE", metadata.NewSet(), new, nil, nil)

	require.NoError(t, Apply(context.Background(), cfg, m))
	assert.True(t, m.KernelDone())
	assert.True(t, m.WorldDone())

	_, err := cfg.FS.Lstat("/usr/bin/vi")
	require.NoError(t, err)
}

func TestApplyDryRunMutatesNothing(t *testing.T) {
	cfg, store := baseConfig(t)
	cfg.DryRun = true

	newContent := []byte("echo new\n")
	sum := hash.SumBytes(newContent)
	require.NoError(t, store.Put(sum, bytes.NewReader(newContent)))

	new := metadata.NewSet()
	new.Add(metadata.NewFile("/usr/local/bin/fresh", 0, 0, 0o755, 0, sum))

	m := state.NewSimpleUpdate("13.2-RELEASE-p6", metadata.NewSet(), new)
	require.NoError(t, Apply(context.Background(), cfg, m))

	_, err := cfg.FS.Lstat("/usr/local/bin/fresh")
	assert.Error(t, err, "dry run must not touch the filesystem")
}
