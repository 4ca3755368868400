// Package fsutil holds the small billy.Filesystem helpers shared by
// packages that otherwise have no common ancestor — scanner, install,
// and config all need a yes/no answer to "does this path exist, and
// what is it", without each re-deriving os.IsNotExist handling around
// fsys.Stat. Grounded on the repeated fsys.Stat/os.IsNotExist pairing
// in internal/scanner/scanner.go and internal/install/kernel.go.
package fsutil

import (
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
)

// IsRegularFile reports whether base/rel exists and is a regular file.
// A missing path is not an error; any other Stat failure is returned.
func IsRegularFile(fsys billy.Filesystem, base, rel string) (bool, error) {
	fi, err := fsys.Stat(path.Join(base, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

// Exists reports whether base/rel exists at all, regardless of type.
func Exists(fsys billy.Filesystem, base, rel string) (bool, error) {
	_, err := fsys.Stat(path.Join(base, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
