package cli

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/fetchpipeline"
	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/install"
	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/scanner"
	"github.com/yonasBSD/freebsd-godate/internal/state"
)

// newExtractCommand builds the manual do-what-I-say path: grab pristine
// upstream copies of named paths and force-install them, bypassing
// fetch/upgrade's pending-state machinery entirely. Grounded on
// freebsd-update's src/cmd/extract.rs.
func newExtractCommand() *cobra.Command {
	var dryRun, useRegex, onlyComponents, force bool

	cmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "force-install pristine upstream copies of the given paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return wrapPrecondition("extract needs one or more paths")
			}
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runExtract(cmd.Context(), rc, args, extractOpts{
				DryRun:         dryRun,
				Regex:          useRegex,
				OnlyComponents: onlyComponents,
				Force:          force,
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "say what would be installed, don't install it")
	flags.BoolVarP(&useRegex, "regex", "x", false, "treat paths as regular expressions instead of literal paths")
	flags.BoolVarP(&onlyComponents, "only-components", "c", false, "filter upstream paths down to apparently-installed components")
	flags.BoolVarP(&force, "force", "f", false, "overwrite files even when the system already matches upstream")
	return cmd
}

type extractOpts struct {
	DryRun         bool
	Regex          bool
	OnlyComponents bool
	Force          bool
}

func runExtract(ctx context.Context, rc *runContext, paths []string, opts extractOpts) error {
	arch, err := rc.Kernel.Arch()
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("determining architecture: %v", err))
	}
	release, _, err := rc.release(ctx)
	if err != nil {
		return wrapPrecondition(err.Error())
	}

	var pathRes []*regexp.Regexp
	if opts.Regex {
		for _, p := range paths {
			re, err := regexp.Compile(p)
			if err != nil {
				return wrapPrecondition(fmt.Sprintf("%q is not a valid regex: %v", p, err))
			}
			pathRes = append(pathRes, re)
		}
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

	fetchCfg := fetchpipeline.Config{
		FS: rc.FS, FilesDir: rc.FilesDir, HTTP: rc.HTTP, Limits: rc.Limits,
	}

	lines, err := fetchpipeline.FetchAllManifest(ctx, fetchCfg, sess)
	if err != nil {
		return &TransportError{Err: err}
	}
	group := metadata.FromLines(lines)

	// extract is a manual override: IgnorePaths/IDSIgnorePaths never
	// trim its candidate set, only the component filter below does.
	if opts.OnlyComponents {
		scanPaths := group.Flatten().Paths()
		if len(scanPaths) == 0 {
			return wrapPrecondition("upstream manifest has no paths to scan against")
		}
		sort.Strings(scanPaths)
		cur, err := scanner.Scan(ctx, rc.Limits, rc.FS, rc.Cfg.BaseDir, scanPaths, scanner.Options{Hash: false})
		if err != nil {
			return fmt.Errorf("cli: scanning system for component check: %w", err)
		}
		keep := group.ComponentsInstalled(cur.PathSet())
		names := make([]string, len(keep))
		for i, c := range keep {
			names[i] = string(c)
		}
		fmt.Println("using components:", strings.Join(names, " "))
		group.KeepComponents(keep)
	} else {
		group.KeepComponents(rc.Cfg.Components)
	}

	all := group.Flatten()

	if opts.Regex {
		all.KeepMatching(pathRes)
	} else {
		wanted := map[string]bool{}
		for _, p := range paths {
			wanted[p] = true
		}
		for _, p := range all.Paths() {
			if !wanted[p] {
				all.Remove(p)
			}
		}
	}

	if all.Len() == 0 {
		fmt.Println("no matching paths found")
		return nil
	}
	fmt.Printf("%d path(s) matched\n", all.Len())

	cur, err := scanner.Scan(ctx, rc.Limits, rc.FS, rc.Cfg.BaseDir, all.Paths(), scanner.Options{Hash: true})
	if err != nil {
		return fmt.Errorf("cli: scanning system: %w", err)
	}

	if !opts.Force {
		removeUnchanged(all, cur, rc.Cfg.KeepModifiedMetadata)
		if all.Len() == 0 {
			fmt.Println("nothing left to do, system already matches upstream")
			return nil
		}
		fmt.Printf("%d path(s) remaining after dropping unchanged entries\n", all.Len())
	}

	store := objstore.New(rc.FS, rc.FilesDir)
	var need []hash.Hash
	all.Each(func(r metadata.Record) {
		if r.Kind() != metadata.KindFile || store.Has(r.Sum()) {
			return
		}
		need = append(need, r.Sum())
	})

	if len(need) > 0 {
		if opts.DryRun {
			fmt.Printf("dry run: would download %d file(s)\n", len(need))
		} else {
			fmt.Printf("fetching %d file(s)...\n", len(need))
			if err := fetchpipeline.FetchContent(ctx, fetchCfg, sess, need); err != nil {
				return &TransportError{Err: err}
			}
		}
	} else {
		fmt.Println("all data files present")
	}

	if opts.DryRun {
		fmt.Println("dry run: would install the following:")
		for _, p := range all.Paths() {
			fmt.Println(" ", p)
		}
		return nil
	}

	empty := metadata.NewSet()
	m := state.NewSimpleUpdate(release, empty, all)

	cfg := install.Config{
		FS:         rc.FS,
		BaseDir:    rc.Cfg.BaseDir,
		FilesDir:   rc.FilesDir,
		Limits:     rc.Limits,
		Priv:       install.OSPrivileged{},
		Privileged: true,
		Fsync:      true,
	}

	if err := install.Apply(ctx, cfg, m); err != nil {
		return &FSApplyError{Err: err}
	}

	fmt.Println("done.")
	rc.Log.Info("extract complete", logging.Int("installed", all.Len()))
	return nil
}

// removeUnchanged drops every path from all that already matches the
// live system's metadata, the non-force default's "don't overwrite
// things that already match" behavior.
func removeUnchanged(all, cur *metadata.Set, compareOwner bool) {
	opts := metadata.EqualOptions{CompareOwner: compareOwner}
	for _, p := range all.Paths() {
		want, _ := all.Get(p)
		got, ok := cur.Get(p)
		if !ok {
			continue
		}
		if metadata.Equal(want, got, opts) {
			all.Remove(p)
		}
	}
}
