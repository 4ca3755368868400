package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yonasBSD/freebsd-godate/internal/fetchpipeline"
	"github.com/yonasBSD/freebsd-godate/internal/fsutil"
	"github.com/yonasBSD/freebsd-godate/internal/sysinfo"
)

// newDumpMetadataCommand builds the hidden developer aid that fetches a
// release's raw metadata-index blobs and writes them out for manual
// inspection, skipping every bit of install/diff machinery. Grounded on
// freebsd-update's src/cmd/dump_metadata.rs.
func newDumpMetadataCommand() *cobra.Command {
	var version, dir string

	cmd := &cobra.Command{
		Use:    "dump-metadata",
		Short:  "write a release's raw metadata-index blobs to a directory",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version == "" {
				return wrapPrecondition("--version is required")
			}
			if dir == "" {
				return wrapPrecondition("--dir is required")
			}
			rc, err := newRunContext(cmd)
			if err != nil {
				return err
			}
			defer rc.Log.Sync()
			return runDumpMetadata(cmd, rc, version, dir)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&version, "version", "", "release to fetch metadata for, e.g. 13.2-RELEASE")
	flags.StringVar(&dir, "dir", "", "existing directory to write fupd-md-index-{all,old,new} into")
	return cmd
}

func runDumpMetadata(cmd *cobra.Command, rc *runContext, versionFlag, dir string) error {
	ctx := cmd.Context()

	ok, err := fsutil.Exists(rc.FS, dir, "")
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("checking output directory: %v", err))
	}
	if !ok {
		return wrapPrecondition(fmt.Sprintf("output directory %s does not exist", dir))
	}

	target, err := sysinfo.ParseRelease(versionFlag)
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("bad --version value: %v", err))
	}

	arch, err := rc.Kernel.Arch()
	if err != nil {
		return wrapPrecondition(fmt.Sprintf("determining architecture: %v", err))
	}

	fmt.Printf("loading info for %s\n", target.String())
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

	names := []string{"all", "old", "new"}
	fmt.Println("fetching metadata index files...")
	blobs, err := fetchpipeline.FetchMetadataRaw(ctx, fetchpipeline.Config{
		FS: rc.FS, FilesDir: rc.FilesDir, HTTP: rc.HTTP, Limits: rc.Limits,
	}, sess, names)
	if err != nil {
		return &TransportError{Err: err}
	}

	fmt.Printf("writing metadata files to %s\n", dir)
	for _, name := range names {
		content, ok := blobs[name]
		if !ok {
			continue
		}
		outName := "fupd-md-index-" + name
		f, err := rc.FS.Create(rc.FS.Join(dir, outName))
		if err != nil {
			return fmt.Errorf("cli: creating %s: %w", outName, err)
		}
		_, writeErr := f.Write(content)
		closeErr := f.Close()
		if writeErr != nil {
			return fmt.Errorf("cli: writing %s: %w", outName, writeErr)
		}
		if closeErr != nil {
			return fmt.Errorf("cli: closing %s: %w", outName, closeErr)
		}
		fmt.Println(" ", outName)
	}

	fmt.Println("done.")
	return nil
}
