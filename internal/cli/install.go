package cli

import (
	"context"
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/install"
	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/posthooks"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func newInstallCommand() *cobra.Command {
	var dryRun, all, noSync bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "apply a fetched update or upgrade to the filesystem",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runInstall(cmd, rc, dryRun, all, noSync)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "report what would change without touching the filesystem")
	flags.BoolVar(&all, "all", false, "run every remaining upgrade phase without stopping between them")
	flags.BoolVar(&noSync, "no-sync", false, "skip fsync after each installed file")
	return cmd
}

func runInstall(cmd *cobra.Command, rc *runContext, dryRun, all, noSync bool) error {
	ctx := cmd.Context()

	st, err := state.Load(rc.FS, rc.StateDir)
	if err != nil {
		if err == state.ErrNoState {
			return wrapPrecondition("nothing pending; run fetch or upgrade first")
		}
		return &StateError{Err: err}
	}
	if st.Manifest == nil {
		return wrapPrecondition("nothing pending; run fetch or upgrade first")
	}

	var hooks []func(ctx context.Context) error
	for _, h := range posthooks.Standard(rc.Cfg.BaseDir) {
		hooks = append(hooks, h.ToFunc(rc.Log))
	}

	cfg := install.Config{
		FS:         rc.FS,
		BaseDir:    rc.Cfg.BaseDir,
		FilesDir:   rc.FilesDir,
		Limits:     rc.Limits,
		Priv:       install.OSPrivileged{},
		Privileged: true,
		DryRun:     dryRun,
		Fsync:      !noSync,
		All:        all,
		BootDir:    path.Join(rc.Cfg.BaseDir, "boot"),
		KernelDir:  path.Join(rc.Cfg.BaseDir, "boot", "kernel"),
		PostHooks:  hooks,
	}

	applyErr := install.Apply(ctx, cfg, st.Manifest)

	if saveErr := state.Save(rc.FS, rc.StateDir, st); saveErr != nil {
		rc.Log.Error("failed to persist manifest after install", logging.Error(saveErr))
		if applyErr == nil {
			return &StateError{Err: saveErr}
		}
	}

	if applyErr != nil {
		return &FSApplyError{Err: applyErr}
	}

	if !st.Manifest.InProgress() && !dryRun {
		if err := state.Clear(rc.FS, rc.StateDir); err != nil {
			rc.Log.Warn("failed to clear completed pending state", logging.Error(err))
		}
	}

	if dryRun {
		fmt.Println("dry run: no changes applied")
	} else {
		fmt.Println("install complete:", st.Manifest.State())
	}
	return nil
}
