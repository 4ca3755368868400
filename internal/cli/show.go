package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func newShowInstallCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "show-install",
		Short: "show what the pending install would change",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runShowInstall(rc, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list every changed path")
	return cmd
}

func runShowInstall(rc *runContext, verbose bool) error {
	st, err := state.Load(rc.FS, rc.StateDir)
	if err != nil {
		if err == state.ErrNoState {
			fmt.Println("nothing pending")
			return nil
		}
		return &StateError{Err: err}
	}
	if st.Manifest == nil {
		fmt.Println("nothing pending")
		return nil
	}

	m := st.Manifest
	fmt.Printf("kind:    %s\n", m.Kind())
	fmt.Printf("version: %s\n", m.Version())
	fmt.Printf("state:   %s\n", m.State())
	if m.NumConflicts() > 0 {
		fmt.Printf("merge conflicts still pending: %d\n", m.NumConflicts())
	}

	summary := m.Summary()
	fmt.Printf("%d added, %d removed, %d updated\n", len(summary.Added), len(summary.Removed), len(summary.Updated))
	if verbose {
		printSummary(summary)
	}
	return nil
}

func newShowMergesCommand() *cobra.Command {
	var unresolvedOnly bool
	cmd := &cobra.Command{
		Use:   "show-merges",
		Short: "show the merge results recorded against the pending upgrade",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runShowMerges(rc, unresolvedOnly)
		},
	}
	cmd.Flags().BoolVarP(&unresolvedOnly, "unresolved", "u", false, "list only conflicts still needing resolution")
	return cmd
}

func runShowMerges(rc *runContext, unresolvedOnly bool) error {
	st, err := state.Load(rc.FS, rc.StateDir)
	if err != nil {
		if err == state.ErrNoState {
			fmt.Println("nothing pending")
			return nil
		}
		return &StateError{Err: err}
	}
	if st.Manifest == nil || st.Manifest.Kind() != state.KindVersionUpgrade {
		fmt.Println("no pending upgrade")
		return nil
	}

	conflict := st.Manifest.MergeConflict()
	var paths []string
	for p := range conflict {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Println("CONFLICT", p)
	}

	if !unresolvedOnly {
		clean := st.Manifest.MergeClean()
		var cleanPaths []string
		for p := range clean {
			cleanPaths = append(cleanPaths, p)
		}
		sort.Strings(cleanPaths)
		for _, p := range cleanPaths {
			fmt.Println("MERGED", p)
		}
	}
	return nil
}
