package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/fetchpipeline"
	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/state"
	"github.com/yonasBSD/freebsd-godate/internal/sysinfo"
)

func newUpgradeCommand() *cobra.Command {
	var release string

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "fetch the updates needed to move to a new release",
		RunE: func(cmd *cobra.Command, args []string) error {
			if release == "" {
				return wrapPrecondition("--release is required")
			}
			target, err := sysinfo.ParseRelease(release)
			if err != nil {
				return wrapPrecondition(fmt.Sprintf("bad --release value: %v", err))
			}

			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runUpgrade(cmd, rc, target)
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "target release, e.g. 14.1-RELEASE")
	return cmd
}

func runUpgrade(cmd *cobra.Command, rc *runContext, target sysinfo.Release) error {
	ctx := cmd.Context()

	st, err := state.Load(rc.FS, rc.StateDir)
	if err != nil && err != state.ErrNoState {
		return &StateError{Err: err}
	}
	if st != nil && st.Manifest != nil && st.Manifest.InProgress() {
		return wrapPrecondition("an upgrade is already in progress; run install to continue it before fetching another")
	}

	arch, err := rc.Kernel.Arch()
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("determining architecture: %v", err))
	}

	sess, err := fetchpipeline.Establish(ctx, fetchpipeline.AuthConfig{
		Servername:     rc.Cfg.ServerName,
		KeyFingerprint: rc.Cfg.KeyPrint,
		Arch:           arch,
		Release:        target.Release,
		RelType:        target.RelType,
		HTTPClient:     rc.HTTP,
	})
	if err != nil {
		return &TransportError{Err: err}
	}

	oldLines, newLines, err := fetchpipeline.FetchManifests(ctx, fetchpipeline.Config{
		FS: rc.FS, FilesDir: rc.FilesDir, HTTP: rc.HTTP, Limits: rc.Limits,
	}, sess)
	if err != nil {
		return &TransportError{Err: err}
	}

	force, warning, err := fetchpipeline.EvalKernelGuard(rc.Kernel, rc.Cfg.BaseDir)
	if err != nil {
		rc.Log.Warn("kernel guard check failed", logging.Error(err))
	}
	if warning != "" {
		rc.Log.Warn(warning)
		fmt.Println(warning)
	}

	cfg := fetchpipeline.Config{
		Version: target.String(),
		Policy: diff.Policy{
			UpdateIfUnmodified:   rc.Cfg.UpdateIfUnmodified,
			MergeChanges:         rc.Cfg.MergeChanges,
			KeepModifiedMetadata: rc.Cfg.KeepModifiedMetadata,
		},
		ComponentsInstalled: len(rc.Cfg.Components) == 0,
		KeepComponents:      rc.Cfg.Components,
		ForceComponents:     force,
		FS:                  rc.FS,
		BaseDir:             rc.Cfg.BaseDir,
		FilesDir:            rc.FilesDir,
		TmpDir:              rc.TmpDir,
		Limits:              rc.Limits,
		HTTP:                rc.HTTP,
	}

	result, err := fetchpipeline.Upgrade(ctx, cfg, sess, oldLines, newLines)
	if err != nil {
		return &TransportError{Err: err}
	}

	if err := state.Save(rc.FS, rc.StateDir, &state.State{Manifest: result.Manifest}); err != nil {
		return &StateError{Err: err}
	}

	summary := result.Manifest.Summary()
	printSummary(summary)
	if n := result.Manifest.NumConflicts(); n > 0 {
		fmt.Printf("%d merge conflict(s) need attention; run resolve-merges before install\n", n)
	}
	rc.Log.Info("upgrade fetch complete", logging.String("target", target.String()),
		logging.Int("conflicts", result.Manifest.NumConflicts()))
	return nil
}
