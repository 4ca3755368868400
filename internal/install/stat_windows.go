//go:build windows

package install

import "os"

// sameInode has no portable cheap equivalent under Windows' FileInfo;
// always report "different" so the caller removes and relinks.
func sameInode(a, b os.FileInfo) bool { return false }
