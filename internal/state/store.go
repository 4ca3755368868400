package state

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// FileName is the statefile's name within its per-basedir directory.
const FileName = "state.json"

// DirName returns the stable per-basedir subdirectory name: the
// URL-safe, unpadded base64 encoding of basedir, prefixed "state." —
// freebsd-update's statesubdir() picked base64 over, say, hashing the
// path so the name stays reversible for debugging, at the cost of
// length; we keep that tradeoff.
func DirName(basedir string) string {
	return "state." + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(basedir))
}

// State is the full on-disk pending state for one basedir: a cached
// manifest index from the last successful fetch of the index-of-indexes,
// and an optional pending Manifest awaiting install or resolution.
type State struct {
	MetaIdx  *metadata.Index
	Manifest *Manifest
}

// ErrNoState is returned by Load when the statefile doesn't exist — not
// an error condition on its own, just "nothing pending".
var ErrNoState = errors.New("state: no pending state")

type jsonState struct {
	MetaIdx  *metadata.Index `json:"meta_idx,omitempty"`
	Manifest *Manifest       `json:"manifest,omitempty"`
}

// Load reads the statefile from dir. It returns ErrNoState (wrapping
// nothing) if the file is simply absent, a parse error if the content
// is malformed JSON, or the underlying I/O error otherwise — matching
// None/ParseError/Io trichotomy.
func Load(fs billy.Filesystem, dir string) (*State, error) {
	path := fs.Join(dir, FileName)
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}

	var js jsonState
	if err := json.Unmarshal(b, &js); err != nil {
		return nil, fmt.Errorf("state: parse %s: %w", path, err)
	}
	return &State{MetaIdx: js.MetaIdx, Manifest: js.Manifest}, nil
}

// Save writes st to dir, creating dir if needed. There is no
// atomic-rename requirement, but we add one anyway via a temp-file-then-
// rename, matching objstore.Store.Put's and the installer's own
// write-then-rename convention elsewhere in this codebase.
func Save(fs billy.Filesystem, dir string, st *State) error {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("state: mkdir %s: %w", dir, err)
	}

	b, err := json.MarshalIndent(jsonState{MetaIdx: st.MetaIdx, Manifest: st.Manifest}, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	tmp, err := util.TempFile(fs, dir, "state-")
	if err != nil {
		return fmt.Errorf("state: tempfile: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = fs.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close: %w", err)
	}

	path := fs.Join(dir, FileName)
	if err := fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("state: rename into place: %w", err)
	}
	return nil
}

// Clear removes dir's statefile, backing the user-invoked "forget pending
// manifest" operation. Removing an absent statefile is not an error.
func Clear(fs billy.Filesystem, dir string) error {
	path := fs.Join(dir, FileName)
	err := fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: remove %s: %w", path, err)
	}
	return nil
}
