// Package install implements installer: applying a pending
// state.Manifest to the filesystem in strict type order, phased across
// kernel/world/cleanup steps for a VersionUpgrade, with kernel backup
// and an immutable-flag sweep as pre-steps. Grounded on freebsd-update's
// src/core/install/{install,bits,kernel,post}.rs for the operation
// semantics, and on go-git's worktree.go Checkout/Reset for the Go shape
// of a staged, ordered filesystem mutation over a billy.Filesystem.
package install
