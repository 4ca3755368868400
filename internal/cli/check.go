package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/fetchpipeline"
	"github.com/yonasBSD/freebsd-godate/internal/logging"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/scanner"
)

func newCheckSysCommand() *cobra.Command {
	var kinds, include, exclude string
	cmd := &cobra.Command{
		Use:   "check-sys",
		Short: "compare the live system against the upstream manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runCheckSys(cmd.Context(), rc, kinds, include, exclude)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&kinds, "kinds", "i", "", "comma-separated record kinds to check (file,hardlink,directory,symlink); default all")
	flags.StringVarP(&include, "path", "p", "", "only check paths matching this regex")
	flags.StringVarP(&exclude, "exclude", "x", "", "skip paths matching this regex, in addition to IDSIgnorePaths")
	return cmd
}

func runCheckSys(ctx context.Context, rc *runContext, kindsFlag, includeFlag, excludeFlag string) error {
	arch, err := rc.Kernel.Arch()
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("determining architecture: %v", err))
	}
	release, _, err := rc.release(ctx)
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

	lines, err := fetchpipeline.FetchAllManifest(ctx, fetchpipeline.Config{
		FS: rc.FS, FilesDir: rc.FilesDir, HTTP: rc.HTTP, Limits: rc.Limits,
	}, sess)
	if err != nil {
		return &TransportError{Err: err}
	}

	all := metadata.FromLines(lines).Flatten()

	var kindFilter map[metadata.Kind]bool
	if kindsFlag != "" {
		kindFilter = map[metadata.Kind]bool{}
		for _, name := range strings.Split(kindsFlag, ",") {
			k, err := kindFromName(strings.TrimSpace(name))
			if err != nil {
				return wrapPrecondition(err.Error())
			}
			kindFilter[k] = true
		}
	}

	var include, exclude *regexp.Regexp
	if includeFlag != "" {
		include, err = regexp.Compile(includeFlag)
		if err != nil {
			return wrapPrecondition(fmt.Sprintf("bad --path regex: %v", err))
		}
	}
	if excludeFlag != "" {
		exclude, err = regexp.Compile(excludeFlag)
		if err != nil {
			return wrapPrecondition(fmt.Sprintf("bad --exclude regex: %v", err))
		}
	}

	var checkPaths []string
	for _, p := range all.Paths() {
		if include != nil && !include.MatchString(p) {
			continue
		}
		if exclude != nil && exclude.MatchString(p) {
			continue
		}
		if anyMatchCheck(rc.Cfg.IDSIgnorePaths, p) {
			continue
		}
		if r, ok := all.Get(p); ok && kindFilter != nil && !kindFilter[r.Kind()] {
			continue
		}
		checkPaths = append(checkPaths, p)
	}

	cur, err := scanner.Scan(ctx, rc.Limits, rc.FS, rc.Cfg.BaseDir, checkPaths, scanner.Options{Hash: true})
	if err != nil {
		return fmt.Errorf("cli: scanning system: %w", err)
	}

	mismatches := 0
	for _, p := range checkPaths {
		want, ok := all.Get(p)
		if !ok {
			continue
		}
		got, ok := cur.Get(p)
		if !ok {
			got = metadata.NewAbsent(p)
		}
		diffs := metadata.CompareFields(want, got, metadata.EqualOptions{CompareOwner: rc.Cfg.KeepModifiedMetadata})
		if len(diffs) == 0 {
			continue
		}
		mismatches++
		fmt.Printf("%s: %s\n", p, describeDiffs(diffs))
	}

	if mismatches == 0 {
		fmt.Println("system matches upstream manifest")
	}
	rc.Log.Info("check-sys complete", logging.Int("mismatches", mismatches))
	return nil
}

func kindFromName(name string) (metadata.Kind, error) {
	switch name {
	case "file":
		return metadata.KindFile, nil
	case "hardlink":
		return metadata.KindHardlink, nil
	case "directory", "dir":
		return metadata.KindDirectory, nil
	case "symlink":
		return metadata.KindSymlink, nil
	default:
		return 0, fmt.Errorf("unknown record kind %q", name)
	}
}

func anyMatchCheck(patterns []*regexp.Regexp, p string) bool {
	for _, re := range patterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func describeDiffs(diffs []metadata.Diff) string {
	names := make([]string, len(diffs))
	for i, d := range diffs {
		switch d.Field {
		case metadata.DiffSum:
			names[i] = "content"
		case metadata.DiffOwner:
			names[i] = "owner"
		case metadata.DiffMode:
			names[i] = "mode"
		case metadata.DiffFlags:
			names[i] = "flags"
		case metadata.DiffTarget:
			names[i] = "target"
		case metadata.DiffKindMismatch:
			names[i] = "type"
		default:
			names[i] = "unknown"
		}
	}
	return strings.Join(names, ",")
}

func newCheckFetchCommand() *cobra.Command {
	var quiet, cron bool
	cmd := &cobra.Command{
		Use:   "check-fetch",
		Short: "cheaply check whether a newer patch level is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runCheckFetch(cmd.Context(), rc, quiet || cron)
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&quiet, "quiet", "q", false, "print nothing, only set the exit code")
	flags.BoolVar(&cron, "cron", false, "alias for --quiet")
	return cmd
}

func runCheckFetch(ctx context.Context, rc *runContext, quiet bool) error {
	arch, err := rc.Kernel.Arch()
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("determining architecture: %v", err))
	}
	release, _, err := rc.release(ctx)
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

	oldSet := metadata.FromLines(oldLines).Flatten()
	newSet := metadata.FromLines(newLines).Flatten()
	scanPaths := oldSet.Clone()
	newSet.Each(func(r metadata.Record) {
		if _, ok := scanPaths.Get(r.Path()); !ok {
			scanPaths.Add(r)
		}
	})

	cur, err := scanner.Scan(ctx, rc.Limits, rc.FS, rc.Cfg.BaseDir, scanPaths.Paths(), scanner.Options{Hash: true})
	if err != nil {
		return fmt.Errorf("cli: scanning system: %w", err)
	}

	result, _ := diff.Run(oldSet, newSet, cur, diff.Policy{
		UpdateIfUnmodified:   rc.Cfg.UpdateIfUnmodified,
		MergeChanges:         rc.Cfg.MergeChanges,
		KeepModifiedMetadata: rc.Cfg.KeepModifiedMetadata,
	}, nil)

	needed := len(result.Additions) + len(result.Removals) + len(result.Updates)
	if needed == 0 {
		if !quiet {
			fmt.Println("no updates needed")
		}
		return nil
	}

	if !quiet {
		fmt.Printf("%d update(s) available\n", needed)
	}
	return &updatesAvailableError{count: needed}
}

// updatesAvailableError is check-fetch's "exit 1 if newer patch exists"
// signal. It falls through exitCode's default case to 1, same as any
// other unrecognized error.
type updatesAvailableError struct{ count int }

func (e *updatesAvailableError) Error() string {
	return fmt.Sprintf("%d update(s) available", e.count)
}
