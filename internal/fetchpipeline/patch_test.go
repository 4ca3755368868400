package fetchpipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/bindiff"
	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

func TestSelectPatchCandidates(t *testing.T) {
	oldContent := []byte("release one content")
	curContent := oldContent // untouched locally
	newContent := []byte("release two content")

	oldSum := hash.SumBytes(oldContent)
	newSum := hash.SumBytes(newContent)

	old := metadata.NewSet()
	old.Add(metadata.NewFile("/bin/sh", 0, 0, 0o755, 0, oldSum))

	updates := []diff.Update{
		{
			Path: "/bin/sh",
			Cur:  metadata.NewFile("/bin/sh", 0, 0, 0o755, 0, oldSum),
			New:  metadata.NewFile("/bin/sh", 0, 0, 0o755, 0, newSum),
		},
		{
			// cur already matches new: no patch opportunity.
			Path: "/bin/unchanged",
			Cur:  metadata.NewFile("/bin/unchanged", 0, 0, 0o755, 0, newSum),
			New:  metadata.NewFile("/bin/unchanged", 0, 0, 0o755, 0, newSum),
		},
		{
			// locally modified: cur doesn't match old, no patch base.
			Path: "/etc/modified",
			Cur:  metadata.NewFile("/etc/modified", 0, 0, 0o644, 0, hash.SumBytes([]byte("local edit"))),
			New:  metadata.NewFile("/etc/modified", 0, 0, 0o644, 0, newSum),
		},
		{
			// a type change: not patchable.
			Path: "/etc/link",
			Cur:  metadata.NewFile("/etc/link", 0, 0, 0o644, 0, oldSum),
			New:  metadata.NewSymlink("/etc/link", "/etc/real", 0, 0, 0o644, 0),
		},
	}

	cands := selectPatchCandidates(old, updates)
	require.Len(t, cands, 1)
	assert.Equal(t, "/bin/sh", cands[0].Path)
	assert.Equal(t, oldSum, cands[0].From)
	assert.Equal(t, newSum, cands[0].To)
	_ = curContent
}

func TestApplyOnePatch(t *testing.T) {
	fs := memfs.New()
	store := objstore.New(fs, "files")

	oldContent := []byte("AAAABBBBCCCC")
	newContent := []byte("AAAAXXXXCCCC")
	oldSum := hash.SumBytes(oldContent)
	newSum := hash.SumBytes(newContent)

	require.NoError(t, store.Put(oldSum, bytes.NewReader(oldContent)))

	var patchBuf bytes.Buffer
	require.NoError(t, bindiff.Encode(&patchBuf, []bindiff.Instruction{
		bindiff.Copy(0, 4),
		bindiff.Insert([]byte("XXXX")),
		bindiff.Copy(8, 4),
	}))

	require.NoError(t, fs.MkdirAll("tmp", 0o755))
	c := PatchCandidate{Path: "/bin/thing", From: oldSum, To: newSum}
	f, err := fs.Create(fs.Join("tmp", patchName(c)))
	require.NoError(t, err)
	_, err = f.Write(patchBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := applyOnePatch(fs, "tmp", store, c)
	require.NoError(t, err)
	assert.Equal(t, newSum, got)
	assert.True(t, store.Has(newSum))

	r, err := store.Open(newSum)
	require.NoError(t, err)
	defer r.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, newContent, out.Bytes())
}

func TestApplyOnePatchWrongTarget(t *testing.T) {
	fs := memfs.New()
	store := objstore.New(fs, "files")

	oldContent := []byte("same old content")
	oldSum := hash.SumBytes(oldContent)
	require.NoError(t, store.Put(oldSum, bytes.NewReader(oldContent)))

	var patchBuf bytes.Buffer
	require.NoError(t, bindiff.Encode(&patchBuf, []bindiff.Instruction{
		bindiff.Insert([]byte("completely different")),
	}))

	require.NoError(t, fs.MkdirAll("tmp", 0o755))
	c := PatchCandidate{Path: "/bin/thing", From: oldSum, To: hash.SumBytes([]byte("expected but wrong"))}
	f, err := fs.Create(fs.Join("tmp", patchName(c)))
	require.NoError(t, err)
	_, err = f.Write(patchBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = applyOnePatch(fs, "tmp", store, c)
	require.Error(t, err)
}

func TestApplyPatchesNoCandidates(t *testing.T) {
	fs := memfs.New()
	store := objstore.New(fs, "files")
	produced, err := applyPatches(context.Background(), pool.DefaultLimits(), nil, fs, nil, "tmp", store, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, produced.Size())
}
