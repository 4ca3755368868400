package fsutil_test

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/fsutil"
)

func TestIsRegularFileTrueForFile(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create("/usr/src/COPYRIGHT")
	require.NoError(t, err)
	f.Close()

	ok, err := fsutil.IsRegularFile(fs, "/", "usr/src/COPYRIGHT")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsRegularFileFalseForMissing(t *testing.T) {
	fs := memfs.New()
	ok, err := fsutil.IsRegularFile(fs, "/", "usr/src/COPYRIGHT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsRegularFileFalseForDirectory(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/usr/src/COPYRIGHT", 0o755))

	ok, err := fsutil.IsRegularFile(fs, "/", "usr/src/COPYRIGHT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExists(t *testing.T) {
	fs := memfs.New()
	ok, err := fsutil.Exists(fs, "/", "etc/rc.conf")
	require.NoError(t, err)
	assert.False(t, ok)

	f, err := fs.Create("/etc/rc.conf")
	require.NoError(t, err)
	f.Close()

	ok, err = fsutil.Exists(fs, "/", "etc/rc.conf")
	require.NoError(t, err)
	assert.True(t, ok)
}
