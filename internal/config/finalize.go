package config

import (
	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/fsutil"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// FinalizeComponents implements freebsd-update's finalize_components:
// a one-off hack dropping the "src" component when the system doesn't
// appear to have src installed, so a stock Components line doesn't try
// to update source code nobody fetched. "Apparently there" means
// usr/src/COPYRIGHT exists under cfg.BaseDir; an explicit "src/whatever"
// subcomponent is left untouched either way, matching the original's
// exact-equality retain predicate rather than a prefix match.
func FinalizeComponents(fsys billy.Filesystem, cfg *Config) error {
	if !hasSrcComponent(cfg.Components) {
		return nil
	}

	present, err := fsutil.IsRegularFile(fsys, cfg.BaseDir, "usr/src/COPYRIGHT")
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	kept := cfg.Components[:0:0]
	for _, c := range cfg.Components {
		if c != metadata.Component("src") {
			kept = append(kept, c)
		}
	}
	cfg.Components = kept
	return nil
}
