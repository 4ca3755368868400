package resolve_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/resolve"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func putString(t *testing.T, store *objstore.Store, s string) hash.Hash {
	t.Helper()
	h := hash.SumBytes([]byte(s))
	require.NoError(t, store.Put(h, bytes.NewReader([]byte(s))))
	return h
}

func newDriver(t *testing.T, interactor resolve.Interactor) (*resolve.Driver, billy.Filesystem, *objstore.Store) {
	t.Helper()
	fs := memfs.New()
	store := objstore.New(fs, "files")
	d := &resolve.Driver{
		FS:         fs,
		Store:      store,
		TmpDir:     "/tmp/godate",
		Interactor: interactor,
		Out:        &bytes.Buffer{},
	}
	return d, fs, store
}

func conflictManifest(t *testing.T, store *objstore.Store, path, old, cur, new, res string) *state.Manifest {
	t.Helper()
	clean := map[string]state.MergeRecord{}
	conflict := map[string]state.MergeRecord{
		path: {
			Old: putString(t, store, old),
			Cur: putString(t, store, cur),
			New: putString(t, store, new),
			Res: putString(t, store, res),
		},
	}
	return state.NewVersionUpgrade("14.1-RELEASE", nil, nil, clean, conflict)
}

func TestRunAcceptsCleanResolutionOnFirstEdit(t *testing.T) {
	resolved := "resolved content\n"
	si := &resolve.ScriptedInteractor{
		Responses: []string{"e", "a"},
		Edits: []func(path string) error{
			func(path string) error { return nil }, // editor "does nothing"; file already clean below
		},
	}
	d, _, store := newDriver(t, si)

	// extractToFile already writes rec.Res (marker-free) to the merge
	// scratch file, so a no-op Edits func is enough to accept it.
	m := conflictManifest(t, store, "/etc/rc.conf", "old\n", "cur\n", "new\n", resolved)

	res, err := d.Run(m)
	require.NoError(t, err)
	assert.Equal(t, resolve.Result{Fixed: 1, Remaining: 0}, res)
	assert.Len(t, m.MergeConflict(), 0)
	assert.Len(t, m.MergeClean(), 1)

	clean := m.MergeClean()["/etc/rc.conf"]
	rc, err := store.Open(clean.Res)
	require.NoError(t, err)
	defer rc.Close()
}

func TestRunSkipAtFirstPromptLeavesConflict(t *testing.T) {
	si := &resolve.ScriptedInteractor{Responses: []string{"s"}}
	d, _, store := newDriver(t, si)

	m := conflictManifest(t, store, "/etc/rc.conf", "old\n", "cur\n", "new\n", "still-conflicted\n")

	res, err := d.Run(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolve.ErrConflictsRemain))
	assert.Equal(t, resolve.Result{Fixed: 0, Remaining: 1}, res)
	assert.Len(t, m.MergeConflict(), 1)
}

func TestRunReEditsWhenMarkersRemain(t *testing.T) {
	withMarkers := "<<<<<<< current\nmine\n=======\ntheirs\n>>>>>>> new\n"
	fixed := "theirs\n"

	d, fs, store := newDriver(t, nil)

	si := &resolve.ScriptedInteractor{
		Responses: []string{"e", "e", "a"},
		Edits: []func(path string) error{
			// first editor invocation: leaves the marker content in place
			func(path string) error { return nil },
			// second editor invocation: actually resolves it
			func(path string) error {
				f, err := fs.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				_, err = f.Write([]byte(fixed))
				return err
			},
		},
	}
	d.Interactor = si

	m := conflictManifest(t, store, "/etc/rc.conf", "old\n", "cur\n", "new\n", withMarkers)

	res, err := d.Run(m)
	require.NoError(t, err)
	assert.Equal(t, resolve.Result{Fixed: 1, Remaining: 0}, res)
}

func TestRunDiffMenuOptionsWriteToOut(t *testing.T) {
	cur := "cur line\n"
	new := "new line\n"
	resolved := "resolved\n"

	si := &resolve.ScriptedInteractor{
		Responses: []string{"e", "d", "D", "a"},
		Edits: []func(path string) error{
			func(path string) error { return nil },
		},
	}
	var out bytes.Buffer
	d, _, store := newDriver(t, si)
	d.Out = &out

	m := conflictManifest(t, store, "/etc/rc.conf", "old\n", cur, new, resolved)

	res, err := d.Run(m)
	require.NoError(t, err)
	assert.Equal(t, resolve.Result{Fixed: 1, Remaining: 0}, res)

	printed := out.String()
	assert.Contains(t, printed, "- "+cur)
	assert.Contains(t, printed, "- "+new)
}

func TestRunMultipleConflictsMixedOutcome(t *testing.T) {
	si := &resolve.ScriptedInteractor{
		Responses: []string{
			"e", "a", // /etc/a: accept
			"s", // /etc/b: skip at first prompt
		},
		Edits: []func(path string) error{
			func(path string) error { return nil },
		},
	}
	d, _, store := newDriver(t, si)

	clean := map[string]state.MergeRecord{}
	conflict := map[string]state.MergeRecord{
		"/etc/a": {
			Old: putString(t, store, "old-a\n"),
			Cur: putString(t, store, "cur-a\n"),
			New: putString(t, store, "new-a\n"),
			Res: putString(t, store, "resolved-a\n"),
		},
		"/etc/b": {
			Old: putString(t, store, "old-b\n"),
			Cur: putString(t, store, "cur-b\n"),
			New: putString(t, store, "new-b\n"),
			Res: putString(t, store, "still-conflicted-b\n"),
		},
	}
	m := state.NewVersionUpgrade("14.1-RELEASE", nil, nil, clean, conflict)

	res, err := d.Run(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolve.ErrConflictsRemain))
	assert.Equal(t, resolve.Result{Fixed: 1, Remaining: 1}, res)
	assert.Len(t, m.MergeClean(), 1)
	assert.Len(t, m.MergeConflict(), 1)
	_, stillConflicted := m.MergeConflict()["/etc/b"]
	assert.True(t, stillConflicted)
}

func TestRunNoConflictsIsNoop(t *testing.T) {
	d, _, _ := newDriver(t, &resolve.ScriptedInteractor{})
	m := state.NewVersionUpgrade("14.1-RELEASE", nil, nil, nil, nil)

	res, err := d.Run(m)
	require.NoError(t, err)
	assert.Equal(t, resolve.Result{}, res)
}
