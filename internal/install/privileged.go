package install

import "os"

// Privileged bundles the OS-level operations billy.Filesystem has no
// portable equivalent for: hardlink creation, ownership, permission
// bits, and the BSD-style immutable flag final pass sets.
// Swappable for a fake in tests, the way go-git's worktree lets callers
// substitute a Signer/Verifier (see internal/resolve for the same
// pattern applied to the conflict driver).
type Privileged interface {
	Link(oldpath, newpath string) error
	Chown(path string, uid, gid int) error
	Chmod(path string, mode os.FileMode) error
	SetFlags(path string, flags uint32) error
}

// NopPrivileged discards every call: a dry run, or an unprivileged run
// where says owner/flag changes are simply skipped.
type NopPrivileged struct{}

func (NopPrivileged) Link(string, string) error      { return nil }
func (NopPrivileged) Chown(string, int, int) error   { return nil }
func (NopPrivileged) Chmod(string, os.FileMode) error { return nil }
func (NopPrivileged) SetFlags(string, uint32) error  { return nil }

// OSPrivileged performs the real operations against the host OS. Link,
// Chown, and Chmod are portable via the standard library; SetFlags is
// split across flags_bsd.go/flags_linux.go/flags_other.go since
// chflags(2) has no portable equivalent.
type OSPrivileged struct{}

func (OSPrivileged) Link(oldpath, newpath string) error {
	return os.Link(oldpath, newpath)
}

func (OSPrivileged) Chown(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}

func (OSPrivileged) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

func (OSPrivileged) SetFlags(path string, flags uint32) error {
	return chflags(path, flags)
}
