// Package cli wires the subcommands onto the internal packages: one
// cobra.Command per subcommand, flags only, business logic delegated
// straight into internal/config, internal/fetchpipeline,
// internal/install, internal/resolve, and internal/state. Grounded on
// _examples/quantmind-br-gendocs/cmd/root.go (persistent flags +
// Execute) and internal/handlers/base.go (a shared run context every
// handler embeds), the pack's one complete CLI application.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/resolve"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

// PreconditionError is the "Precondition" error kind: missing server name,
// bad key fingerprint, a non-existent base or work directory, a bad
// flag value. The CLI reports it as a bulleted list and aborts.
type PreconditionError struct {
	Problems []string
}

func (e *PreconditionError) Error() string {
	s := "precondition failed:"
	for _, p := range e.Problems {
		s += "\n  - " + p
	}
	return s
}

// TransportError is the "Transport" error kind: a pool that had to succeed
// (the metadata index, a required content hash) never did.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StateError is the "State" error kind: a pending manifest is missing
// where the subcommand requires one, or the statefile is corrupt JSON.
type StateError struct {
	Err error
}

func (e *StateError) Error() string { return fmt.Sprintf("state: %v", e.Err) }
func (e *StateError) Unwrap() error { return e.Err }

// FSApplyError is the "FS-apply" error kind: an I/O failure during
// install. Fatal to the current phase; no automatic rollback, so the
// message tells the user what already happened.
type FSApplyError struct {
	Err error
}

func (e *FSApplyError) Error() string {
	return fmt.Sprintf("install failed partway through: %v\npreviously applied changes were not rolled back; re-run install to continue", e.Err)
}
func (e *FSApplyError) Unwrap() error { return e.Err }

// PrivilegeError is the "Privilege" error kind: an operation requiring
// elevated privilege could neither run nor be safely skipped.
type PrivilegeError struct {
	Err error
}

func (e *PrivilegeError) Error() string { return fmt.Sprintf("privilege: %v", e.Err) }
func (e *PrivilegeError) Unwrap() error { return e.Err }

// exitCode maps an error returned from a RunE into the process exit
// status, distinguishing the error kinds by type so the message and the
// code both reflect which guarantee failed. Unrecognized errors (a bare
// Go error from deeper in the stack) fall back to a generic failure
// code rather than panicking on a failed type assertion.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var precond *PreconditionError
	var transport *TransportError
	var st *StateError
	var fsapply *FSApplyError
	var priv *PrivilegeError

	switch {
	case errors.As(err, &precond):
		return 2
	case errors.As(err, &transport):
		return 3
	case errors.Is(err, objstore.ErrIntegrity):
		return 4
	case errors.As(err, &st):
		return 5
	case errors.As(err, &fsapply):
		return 6
	case errors.As(err, &priv):
		return 7
	case errors.Is(err, state.ErrNoState):
		return 0 // "nothing pending" is informative, not a failure
	case errors.Is(err, resolve.ErrConflictsRemain):
		return 1
	default:
		return 1
	}
}

// die prints err to stderr and exits with exitCode(err). Only called
// from main via Execute's return value, never from within a RunE.
// updatesAvailableError is exempt from the stderr message: check-fetch
// already prints (or, under --quiet/--cron, deliberately doesn't) its
// own summary, and this is its only way to carry a nonzero exit code
// back through a normal RunE return.
func die(err error) {
	var ua *updatesAvailableError
	if !errors.As(err, &ua) {
		fmt.Fprintln(os.Stderr, "freebsd-godate:", err)
	}
	os.Exit(exitCode(err))
}
