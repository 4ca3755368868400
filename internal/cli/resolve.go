package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/resolve"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func newResolveMergesCommand() *cobra.Command {
	var useEditor bool
	cmd := &cobra.Command{
		Use:   "resolve-merges",
		Short: "walk any conflicted merges from the pending upgrade, one at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runResolveMerges(rc, useEditor)
		},
	}
	cmd.Flags().BoolVarP(&useEditor, "editor", "e", true, "spawn $EDITOR on each conflict (the only supported mode today)")
	return cmd
}

// useEditor is accepted for flag-surface parity but unused: the resolve
// loop always spawns $EDITOR, there is no non-editor mode to select
// between.
func runResolveMerges(rc *runContext, useEditor bool) error {
	st, err := state.Load(rc.FS, rc.StateDir)
	if err != nil {
		if err == state.ErrNoState {
			return wrapPrecondition("nothing pending")
		}
		return &StateError{Err: err}
	}
	if st.Manifest == nil || st.Manifest.Kind() != state.KindVersionUpgrade {
		return wrapPrecondition("no pending upgrade to resolve merges for")
	}
	if !resolve.StdinIsTerminal() {
		return wrapPrecondition("resolve-merges needs an interactive terminal on stdin")
	}

	driver := &resolve.Driver{
		FS:         rc.FS,
		Store:      objstore.New(rc.FS, rc.FilesDir),
		TmpDir:     rc.TmpDir,
		Interactor: resolve.NewTerminalInteractor(),
		Out:        os.Stdout,
	}

	result, runErr := driver.Run(st.Manifest)

	if saveErr := state.Save(rc.FS, rc.StateDir, st); saveErr != nil {
		rc.Log.Error("failed to persist manifest after resolve-merges", logging.Error(saveErr))
		if runErr == nil {
			return &StateError{Err: saveErr}
		}
	}

	fmt.Printf("%d resolved, %d remaining\n", result.Fixed, result.Remaining)
	return runErr
}
