package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/fetchpipeline"
	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "download the updates needed to bring the system to the latest patch level",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runFetch(cmd.Context(), rc, false)
		},
	}
}

func newCronCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "like fetch, but silent unless there is something to report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runFetch(cmd.Context(), rc, true)
		},
	}
}

// runFetch implements the fetch/cron pair: both call the same
// pipeline, differing only in whether a no-op result prints anything.
// A prior in-progress upgrade is refused, matching
// freebsd-update's upgrade_in_progress guard.
func runFetch(ctx context.Context, rc *runContext, quiet bool) error {
	st, err := state.Load(rc.FS, rc.StateDir)
	if err != nil && err != state.ErrNoState {
		return &StateError{Err: err}
	}
	if st != nil && st.Manifest != nil && st.Manifest.InProgress() {
		return wrapPrecondition("an upgrade is already in progress; run install to continue it before fetching again")
	}

	release, arch, err := rc.release(ctx)
	if err != nil {
		return wrapPrecondition(err.Error())
	}

	sess, err := fetchpipeline.Establish(ctx, fetchpipeline.AuthConfig{
		Servername:     rc.Cfg.ServerName,
		KeyFingerprint: rc.Cfg.KeyPrint,
		Arch:           arch,
		Release:        release,
		RelType:        "RELEASE",
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
		Version: release,
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

	result, err := fetchpipeline.Update(ctx, cfg, sess, oldLines, newLines)
	if err != nil {
		return &TransportError{Err: err}
	}

	summary := result.Manifest.Summary()
	if summary.Added == nil && summary.Removed == nil && summary.Updated == nil {
		if !quiet {
			fmt.Println("no updates needed")
		}
		return nil
	}

	if err := state.Save(rc.FS, rc.StateDir, &state.State{Manifest: result.Manifest}); err != nil {
		return &StateError{Err: err}
	}

	printSummary(summary)
	for _, p := range result.ModifiedFiles {
		fmt.Printf("src/dest metadata differ, ignoring update for %s\n", p)
	}
	rc.Log.Info("fetch complete",
		logging.Int("added", len(summary.Added)),
		logging.Int("removed", len(summary.Removed)),
		logging.Int("updated", len(summary.Updated)))
	return nil
}

func printSummary(s state.Summary) {
	for _, p := range s.Added {
		fmt.Println("A", p)
	}
	for _, p := range s.Removed {
		fmt.Println("R", p)
	}
	for _, p := range s.Updated {
		fmt.Println("U", p)
	}
}
