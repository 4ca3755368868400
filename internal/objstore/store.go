// Package objstore implements the content-addressed files directory
// described in: every object is stored as "<hex>.gz" under a
// single flat directory, named by the SHA-256 of its decompressed
// content.
package objstore

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
)

// ErrIntegrity is returned when a stored or fetched object's content does
// not hash to the name under which it is stored.
var ErrIntegrity = errors.New("objstore: content does not match hash")

// Store is a content-addressed object cache rooted at a directory.
type Store struct {
	fs   billy.Filesystem
	root string
}

// New returns a Store that reads and writes "<root>/<hex>.gz" files
// through fs.
func New(fs billy.Filesystem, root string) *Store {
	return &Store{fs: fs, root: root}
}

// Path returns the on-disk path of the object named h, regardless of
// whether it currently exists.
func (s *Store) Path(h hash.Hash) string {
	return s.fs.Join(s.root, h.String()+".gz")
}

// Has reports whether an object named h is present.
func (s *Store) Has(h hash.Hash) bool {
	_, err := s.fs.Stat(s.Path(h))
	return err == nil
}

// Put stores content read from r, which must decompress to exactly the
// bytes whose SHA-256 is h (the caller already knows h, e.g. from a
// scan or a manifest entry). Writes go to a temp file and are renamed
// into place, so partial writes are never visible under the final name
// (shared-resource policy).
func (s *Store) Put(h hash.Hash, content io.Reader) error {
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return err
	}

	tmp, err := util.TempFile(s.fs, s.root, "obj-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = s.fs.Remove(tmpName)
	}()

	gw := gzip.NewWriter(tmp)
	hw := hash.NewWriter()
	mw := io.MultiWriter(gw, hw)

	if _, err := io.Copy(mw, content); err != nil {
		tmp.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if hw.Sum() != h {
		return fmt.Errorf("%w: got %s want %s", ErrIntegrity, hw.Sum(), h)
	}

	return s.fs.Rename(tmpName, s.Path(h))
}

// Open returns a reader over the decompressed content of the object
// named h. The caller must Close the returned reader.
func (s *Store) Open(h hash.Hash) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.Path(h))
	if err != nil {
		return nil, err
	}
	gr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReadCloser{Reader: gr, f: f}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	f billy.File
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Verify reads the object named h in full and confirms it decompresses
// to content whose SHA-256 is h. On mismatch it deletes the bad file, as
// required by (Integrity errors delete-and-report).
func (s *Store) Verify(h hash.Hash) error {
	r, err := s.Open(h)
	if err != nil {
		_ = s.fs.Remove(s.Path(h))
		return fmt.Errorf("%w: object %s is not a valid gzip stream: %v", ErrIntegrity, h, err)
	}
	defer r.Close()

	sum, err := hash.Sum(r)
	if err != nil {
		_ = s.fs.Remove(s.Path(h))
		return fmt.Errorf("%w: object %s failed to decompress: %v", ErrIntegrity, h, err)
	}
	if sum != h {
		_ = s.fs.Remove(s.Path(h))
		return fmt.Errorf("%w: object %s decompressed to %s", ErrIntegrity, h, sum)
	}
	return nil
}

// Remove deletes the object named h, if present. Removing an absent
// object is not an error.
func (s *Store) Remove(h hash.Hash) error {
	err := s.fs.Remove(s.Path(h))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
