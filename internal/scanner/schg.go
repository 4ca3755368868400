package scanner

import (
	"context"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

// ImmutablePath pairs a path with the kernel flags lstat reported for
// it, as returned by Schg.
type ImmutablePath struct {
	Path  string
	Flags uint32
}

// Schg scans paths and returns only those whose SF_IMMUTABLE-masked
// flags are nonzero, mirroring freebsd-update's src/core/scan.rs's
// schg(): "find what we might need to unset the flags on" before an
// install pass. Hashing is always skipped — flags state is all this
// sweep needs.
func Schg(ctx context.Context, limits pool.Limits, fsys billy.Filesystem, basedir string, paths []string) ([]ImmutablePath, error) {
	set, err := Scan(ctx, limits, fsys, basedir, paths, Options{Hash: false})
	if err != nil {
		return nil, err
	}

	var out []ImmutablePath
	set.Each(func(r metadata.Record) {
		if r.HasFlags() {
			out = append(out, ImmutablePath{Path: r.Path(), Flags: r.Flags()})
		}
	})
	return out, nil
}
