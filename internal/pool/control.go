package pool

import (
	"net/http"

	"github.com/go-git/go-billy/v5"
)

// Control is the shared value cloned per worker across the five concrete
// pools. Its HTTP client and filesystem handle are safe for
// concurrent use as-is; PathPolicy, a by-value copy, carries the
// policy flags a worker consults without synchronization.
type Control struct {
	HTTP   *http.Client
	FS     billy.Filesystem
	Policy PathPolicy
}

// PathPolicy carries the subset of run-wide policy flags pool workers
// need to read — the owner-compare enable flag and friends are
// threaded the same way rather than read from package globals.
type PathPolicy struct {
	// Privileged reports whether this run has elevated privilege, used
	// by the scan pool to decide whether owner fields are meaningful.
	Privileged bool
	// IgnoreHashes, when set, skips content hashing during a scan pass
	// (used for immutable-flag sweeps).
	IgnoreHashes bool
}

// Clone returns a worker-local copy of c. The HTTP client and
// filesystem are shared by reference (both are safe for concurrent
// use); Policy is copied by value.
func (c Control) Clone() Control {
	return Control{HTTP: c.HTTP, FS: c.FS, Policy: c.Policy}
}
