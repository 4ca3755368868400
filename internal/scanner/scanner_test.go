package scanner_test

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/scanner"
)

func TestScanClassifiesFileDirSymlinkAbsent(t *testing.T) {
	fs := memfs.New()

	f, err := fs.Create("/root/bin/ls")
	require.NoError(t, err)
	_, err = f.Write([]byte("binary-contents"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fs.MkdirAll("/root/etc", 0o755))
	require.NoError(t, fs.Symlink("/bin/ls", "/root/bin/ls-link"))

	set, err := scanner.Scan(context.Background(), pool.DefaultLimits(), fs, "/root",
		[]string{"bin/ls", "etc", "bin/ls-link", "missing"}, scanner.Options{Hash: true})
	require.NoError(t, err)

	fileRec, ok := set.Get("bin/ls")
	require.True(t, ok)
	assert.Equal(t, metadata.KindFile, fileRec.Kind())
	assert.False(t, fileRec.Sum().IsZero())

	dirRec, ok := set.Get("etc")
	require.True(t, ok)
	assert.Equal(t, metadata.KindDirectory, dirRec.Kind())

	linkRec, ok := set.Get("bin/ls-link")
	require.True(t, ok)
	assert.Equal(t, metadata.KindSymlink, linkRec.Kind())
	assert.Equal(t, "/bin/ls", linkRec.Target())

	absentRec, ok := set.Get("missing")
	require.True(t, ok)
	assert.Equal(t, metadata.KindAbsent, absentRec.Kind())
}

func TestScanSkipsHashWhenDisabled(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create("/root/bin/ls")
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	set, err := scanner.Scan(context.Background(), pool.DefaultLimits(), fs, "/root", []string{"bin/ls"}, scanner.Options{Hash: false})
	require.NoError(t, err)

	rec, ok := set.Get("bin/ls")
	require.True(t, ok)
	assert.True(t, rec.Sum().IsZero())
}
