package cli

import (
	"github.com/spf13/cobra"
)

// persistent flag names, shared by root.go and context.go so a typo in
// one can't silently desync Lookup calls in the other.
const (
	flagConfig    = "config"
	flagBaseDir   = "basedir"
	flagWorkDir   = "workdir"
	flagNetwork   = "network-workers"
	flagCPU       = "cpu-workers"
	flagVerbose   = "verbose"
	flagVersion   = "override-version"
)

// NewRootCommand builds the freebsd-godate command tree: the persistent
// flags every subcommand inherits, and one child command per
// subcommand. Grounded on gendocs's cmd/root.go, which wires flags and
// leaves every RunE body to call straight into internal/handlers — here
// that role is internal/*.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "freebsd-godate",
		Short:         "fetch, merge, and install FreeBSD binary updates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(flagConfig, "/etc/freebsd-update.conf", "path to the configuration file")
	flags.String(flagBaseDir, "", "system root to operate against (overrides the config file)")
	flags.String(flagWorkDir, "", "scratch/state directory (overrides the config file)")
	flags.Int(flagNetwork, 0, "override the network worker pool size")
	flags.Int(flagCPU, 0, "override the cpu worker pool size")
	flags.BoolP(flagVerbose, "v", false, "log at debug level")
	flags.String(flagVersion, "", "pretend the running system is this release, e.g. 13.2-RELEASE-p5")

	root.AddCommand(
		newFetchCommand(),
		newCronCommand(),
		newUpgradeCommand(),
		newInstallCommand(),
		newShowInstallCommand(),
		newShowMergesCommand(),
		newResolveMergesCommand(),
		newCleanCommand(),
		newCheckSysCommand(),
		newCheckFetchCommand(),
		newExtractCommand(),
		newDumpMetadataCommand(),
	)

	return root
}

// Execute runs the command tree and translates a returned error into
// the process exit code, matching gendocs's Execute() wrapper around
// rootCmd.Execute().
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		die(err)
	}
}

func wrapPrecondition(problems ...string) error {
	if len(problems) == 0 {
		return nil
	}
	return &PreconditionError{Problems: problems}
}
