package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/state"
)

func newCleanCommand() *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "discard the pending install/upgrade state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runClean(rc, pending)
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "discard the pending install/upgrade manifest (required)")
	return cmd
}

func runClean(rc *runContext, pending bool) error {
	if !pending {
		return wrapPrecondition("clean requires --pending; there is no other cleanup mode")
	}

	if err := state.Clear(rc.FS, rc.StateDir); err != nil {
		return &StateError{Err: err}
	}
	fmt.Println("pending state cleared")
	return nil
}
