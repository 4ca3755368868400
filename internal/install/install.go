// Package install implements installer: applying a pending
// state.Manifest to the filesystem in strict type order, phased across
// kernel/world/cleanup steps for a VersionUpgrade, with kernel backup
// and an immutable-flag sweep as pre-steps. Grounded on freebsd-update's
// src/core/install/{install,bits,kernel,post}.rs for the operation
// semantics, and on go-git's worktree.go Checkout/Reset for the Go shape
// of a staged, ordered filesystem mutation over a billy.Filesystem.
package install

import (
	"context"
	"fmt"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/scanner"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

// Config bundles everything Apply needs: the target filesystem, the
// object store installFile reads content from, and the policy knobs
// exposes (dry run, fsync, privilege, --all phase-skipping).
type Config struct {
	FS       billy.Filesystem
	BaseDir  string // system root, e.g. "/"
	FilesDir string // objstore root
	Limits   pool.Limits

	Priv       Privileged
	Privileged bool // false: owner/flag changes are silently skipped

	DryRun bool
	Fsync bool // default true; see "fsync policy"
	All    bool // skip the reboot/rebuild stop between upgrade phases

	BootDir   string // e.g. "/boot", for kernel backup slot search
	KernelDir string // e.g. "/boot/kernel", the kernel-phase path prefix

	// PostHooks run once, after a SimpleUpdate install or a VersionUpgrade's
	// world phase ("run post-install hooks"). Populated by
	// internal/posthooks in the real CLI wiring; nil is fine in tests.
	PostHooks []func(ctx context.Context) error
}

func (c Config) priv() Privileged {
	if c.Priv != nil {
		return c.Priv
	}
	return NopPrivileged{}
}

// Apply installs m's pending change set against cfg's filesystem,
// advancing m's kernelDone/worldDone flags as phases complete. Callers
// are responsible for persisting m (via internal/state's store) after
// Apply returns, whether it errored or not, since a phased upgrade may
// have made real progress before stopping.
func Apply(ctx context.Context, cfg Config, m *state.Manifest) error {
	if m.NumConflicts() > 0 {
		return fmt.Errorf("install: %d unresolved merge conflict(s) remain", m.NumConflicts())
	}
	if err := verifyContentAvailable(cfg, m.New()); err != nil {
		return err
	}

	if !cfg.DryRun {
		if err := sweepImmutableFlags(ctx, cfg, m.Cur(), m.New()); err != nil {
			return fmt.Errorf("install: immutable flag sweep: %w", err)
		}
	}

	switch m.Kind() {
	case state.KindSimpleUpdate:
		return applySimple(ctx, cfg, m)
	case state.KindVersionUpgrade:
		return applyUpgrade(ctx, cfg, m)
	default:
		return fmt.Errorf("install: unknown manifest kind %v", m.Kind())
	}
}

// applySimple runs unphased path: one full change set,
// followed by post-install hooks.
func applySimple(ctx context.Context, cfg Config, m *state.Manifest) error {
	cs := BuildChangeSet(m.Cur(), m.New())
	if err := applyChangeSet(cfg, cs); err != nil {
		return err
	}
	return runPostHooks(ctx, cfg)
}

// applyUpgrade runs three-phase path. Each call to Apply
// advances exactly one phase unless cfg.All is set, in which case it
// keeps going until the cleanup phase completes.
func applyUpgrade(ctx context.Context, cfg Config, m *state.Manifest) error {
	full := BuildChangeSet(m.Cur(), m.New())
	kernelCS, worldCS := full.KernelOnly(cfg.KernelDir)

	for {
		switch {
		case !m.KernelDone():
			if !cfg.DryRun {
				if err := BackupKernel(cfg.FS, cfg.KernelDir, cfg.BootDir, cfg.priv()); err != nil {
					return fmt.Errorf("install: kernel backup: %w", err)
				}
			}
			if err := applyChangeSet(cfg, kernelCS); err != nil {
				return fmt.Errorf("install: kernel phase: %w", err)
			}
			if !cfg.DryRun {
				m.SetKernelDone()
			}
			if !cfg.All {
				return nil
			}

		case !m.WorldDone():
			worldOnly, _ := deferShlibRemovals(worldCS)
			if err := applyChangeSet(cfg, worldOnly); err != nil {
				return fmt.Errorf("install: world phase: %w", err)
			}
			if err := runPostHooks(ctx, cfg); err != nil {
				return fmt.Errorf("install: post-install hooks: %w", err)
			}
			if !cfg.DryRun {
				m.SetWorldDone()
			}
			if !cfg.All {
				return nil
			}

		default:
			_, deferredRemovals := deferShlibRemovals(worldCS)
			cleanup := ChangeSet{Removals: deferredRemovals}
			return applyChangeSet(cfg, cleanup)
		}
	}
}

// deferShlibRemovals strips a change set's ShlibRemovals out into its
// own return value, so the world phase can install everything else
// while leaving shared-library/runtime-linker deletions for cleanup:
// those binaries may still be in use by running
// processes from the old world.
func deferShlibRemovals(cs ChangeSet) (worldOnly ChangeSet, deferred []metadata.Record) {
	worldOnly = cs
	worldOnly.ShlibRemovals = nil
	return worldOnly, cs.ShlibRemovals
}

// applyChangeSet walks cs in strict type order: directories,
// files, symlinks, hardlinks, then flags, with deletions running last in
// reverse path order. A dry run does every lookup and classification
// above this call but performs no mutation here.
func applyChangeSet(cfg Config, cs ChangeSet) error {
	if cfg.DryRun {
		return nil
	}

	store := objstore.New(cfg.FS, cfg.FilesDir)
	priv := cfg.priv()

	for _, r := range cs.Dirs {
		if err := installDir(cfg.FS, cfg.abs(r.Path()), r, priv, cfg.Privileged); err != nil {
			return err
		}
	}
	for _, r := range cs.Files {
		if _, err := installFile(cfg.FS, cfg.abs(r.Path()), r, store, priv, cfg.Privileged, cfg.Fsync); err != nil {
			return err
		}
	}
	for _, r := range cs.Syms {
		if err := installSymlink(cfg.FS, cfg.abs(r.Path()), r); err != nil {
			return err
		}
	}
	for _, r := range cs.Hards {
		if err := installHardlink(cfg.FS, cfg.abs(r.Path()), cfg.abs(r.Target()), priv); err != nil {
			return err
		}
	}
	if cfg.Privileged {
		for _, r := range cs.Flags {
			if err := priv.SetFlags(cfg.abs(r.Path()), r.Flags()); err != nil {
				return fmt.Errorf("install flags %s: %w", r.Path(), err)
			}
		}
	}

	for _, r := range cs.Removals {
		if _, err := removePath(cfg.FS, cfg.abs(r.Path())); err != nil {
			return fmt.Errorf("install remove %s: %w", r.Path(), err)
		}
	}
	return nil
}

func (c Config) abs(p string) string {
	return path.Join(c.BaseDir, p)
}

// verifyContentAvailable implements precondition that every
// content hash new references already exists in the files directory.
func verifyContentAvailable(cfg Config, new *metadata.Set) error {
	store := objstore.New(cfg.FS, cfg.FilesDir)
	var missing []string
	new.Each(func(r metadata.Record) {
		if r.Kind() != metadata.KindFile {
			return
		}
		if !store.Has(r.Sum()) {
			missing = append(missing, r.Path())
		}
	})
	if len(missing) > 0 {
		return fmt.Errorf("install: %d object(s) not fetched yet, starting with %s", len(missing), missing[0])
	}
	return nil
}

// sweepImmutableFlags implements pre-step: scan every
// about-to-be-touched path for a set immutable flag and clear it, since
// a flagged file can't be removed, renamed over, or replaced otherwise.
// Only meaningful under a privileged run; cfg.priv() is a NopPrivileged
// no-op otherwise.
func sweepImmutableFlags(ctx context.Context, cfg Config, cur, new *metadata.Set) error {
	if !cfg.Privileged {
		return nil
	}

	seen := map[string]bool{}
	var paths []string
	collect := func(r metadata.Record) {
		if !seen[r.Path()] {
			seen[r.Path()] = true
			paths = append(paths, r.Path())
		}
	}
	cur.Each(collect)
	new.Each(collect)
	if len(paths) == 0 {
		return nil
	}

	scanned, err := scanner.Scan(ctx, cfg.Limits, cfg.FS, cfg.BaseDir, paths, scanner.Options{Hash: false})
	if err != nil {
		return fmt.Errorf("scan for flags: %w", err)
	}

	priv := cfg.priv()
	var sweepErr error
	scanned.Each(func(r metadata.Record) {
		if sweepErr != nil || !r.HasFlags() || r.Flags() == 0 {
			return
		}
		if err := priv.SetFlags(cfg.abs(r.Path()), 0); err != nil {
			sweepErr = fmt.Errorf("clear flags on %s: %w", r.Path(), err)
		}
	})
	return sweepErr
}

func runPostHooks(ctx context.Context, cfg Config) error {
	if cfg.DryRun {
		return nil
	}
	for _, hook := range cfg.PostHooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}
