package install

import (
	"bytes"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
)

func TestInstallDirCreatesAndSetsMode(t *testing.T) {
	fs := memfs.New()
	r := metadata.NewDirectory("/usr/local", 0, 0, 0o755, 0)

	require.NoError(t, installDir(fs, "/usr/local", r, NopPrivileged{}, false))

	fi, err := fs.Lstat("/usr/local")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestInstallDirReplacesConflictingFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/usr/local", []byte("not a dir"), 0o644))

	r := metadata.NewDirectory("/usr/local", 0, 0, 0o755, 0)
	require.NoError(t, installDir(fs, "/usr/local", r, NopPrivileged{}, false))

	fi, err := fs.Lstat("/usr/local")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestInstallFileWritesContentFromStore(t *testing.T) {
	fs := memfs.New()
	store := objstore.New(fs, "files")
	content := []byte("#!/bin/sh\necho hi\n")
	sum := hash.SumBytes(content)
	require.NoError(t, store.Put(sum, bytes.NewReader(content)))

	r := metadata.NewFile("/usr/bin/hi", 0, 0, 0o755, 0, sum)
	dirReplaced, err := installFile(fs, "/usr/bin/hi", r, store, NopPrivileged{}, false, true)
	require.NoError(t, err)
	assert.False(t, dirReplaced)

	f, err := fs.Open("/usr/bin/hi")
	require.NoError(t, err)
	defer f.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(f)
	require.NoError(t, err)
	assert.Equal(t, content, buf.Bytes())
}

func TestInstallFileReplacesConflictingDir(t *testing.T) {
	fs := memfs.New()
	store := objstore.New(fs, "files")
	content := []byte("new")
	sum := hash.SumBytes(content)
	require.NoError(t, store.Put(sum, bytes.NewReader(content)))

	require.NoError(t, fs.MkdirAll("/usr/bin/hi", 0o755))
	require.NoError(t, util.WriteFile(fs, "/usr/bin/hi/stray", []byte("x"), 0o644))

	r := metadata.NewFile("/usr/bin/hi", 0, 0, 0o644, 0, sum)
	dirReplaced, err := installFile(fs, "/usr/bin/hi", r, store, NopPrivileged{}, false, false)
	require.NoError(t, err)
	assert.True(t, dirReplaced)

	fi, err := fs.Lstat("/usr/bin/hi")
	require.NoError(t, err)
	assert.False(t, fi.IsDir())
}

func TestInstallSymlinkNoopWhenAlreadyCorrect(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.Symlink("/usr/bin/sh", "/usr/bin/ksh"))

	r := metadata.NewSymlink("/usr/bin/ksh", "/usr/bin/sh", 0, 0, 0o755, 0)
	require.NoError(t, installSymlink(fs, "/usr/bin/ksh", r))

	target, err := fs.Readlink("/usr/bin/ksh")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/sh", target)
}

func TestInstallSymlinkReplacesStale(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.Symlink("/usr/bin/old-sh", "/usr/bin/ksh"))

	r := metadata.NewSymlink("/usr/bin/ksh", "/usr/bin/sh", 0, 0, 0o755, 0)
	require.NoError(t, installSymlink(fs, "/usr/bin/ksh", r))

	target, err := fs.Readlink("/usr/bin/ksh")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/sh", target)
}

func TestInstallHardlinkCreatesLink(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/bin/cp", []byte("cp"), 0o755))

	priv := &recordingPrivileged{}
	require.NoError(t, installHardlink(fs, "/bin/rcp", "/bin/cp", priv))
	require.Len(t, priv.links, 1)
	assert.Equal(t, [2]string{"/bin/cp", "/bin/rcp"}, priv.links[0])
}

func TestInstallHardlinkMissingTargetErrors(t *testing.T) {
	fs := memfs.New()
	err := installHardlink(fs, "/bin/rcp", "/bin/cp", NopPrivileged{})
	assert.Error(t, err)
}

func TestRemovePathNonEmptyDirWarns(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/usr/local/etc", 0o755))
	require.NoError(t, util.WriteFile(fs, "/usr/local/etc/x.conf", []byte("x"), 0o644))

	warned, err := removePath(fs, "/usr/local/etc")
	require.NoError(t, err)
	assert.True(t, warned)
}

func TestRemovePathMissingIsNoop(t *testing.T) {
	fs := memfs.New()
	warned, err := removePath(fs, "/does/not/exist")
	require.NoError(t, err)
	assert.False(t, warned)
}

type recordingPrivileged struct {
	links  [][2]string
	chowns []string
	chmods []string
	flags  map[string]uint32
}

func (p *recordingPrivileged) Link(oldpath, newpath string) error {
	p.links = append(p.links, [2]string{oldpath, newpath})
	return nil
}

func (p *recordingPrivileged) Chown(path string, uid, gid int) error {
	p.chowns = append(p.chowns, path)
	return nil
}

func (p *recordingPrivileged) Chmod(path string, mode os.FileMode) error {
	p.chmods = append(p.chmods, path)
	return nil
}

func (p *recordingPrivileged) SetFlags(path string, flags uint32) error {
	if p.flags == nil {
		p.flags = map[string]uint32{}
	}
	p.flags[path] = flags
	return nil
}
