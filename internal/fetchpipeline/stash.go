package fetchpipeline

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

// stashFiles implements stash step: every File record in cur
// whose content isn't already in store gets copied in, keyed by the
// hash the scanner already computed for it. Store.Put re-verifies the
// stream matches that hash as it writes, which is exactly the
// "re-verifying its hash" spec.md calls for — no separate check needed.
func stashFiles(ctx context.Context, limits pool.Limits, fsys billy.Filesystem, basedir string, store *objstore.Store, cur *metadata.Set) (pool.Result[metadata.Record, hash.Hash], error) {
	var reqs []metadata.Record
	cur.Each(func(r metadata.Record) {
		if r.Kind() != metadata.KindFile {
			return
		}
		if store.Has(r.Sum()) {
			return
		}
		reqs = append(reqs, r)
	})
	if len(reqs) == 0 {
		return pool.Result[metadata.Record, hash.Hash]{}, nil
	}

	control := pool.Control{FS: fsys}
	do := func(_ context.Context, ctrl pool.Control, r metadata.Record) (hash.Hash, error) {
		full := ctrl.FS.Join(basedir, r.Path())
		f, err := ctrl.FS.Open(full)
		if err != nil {
			return hash.Hash{}, fmt.Errorf("open %s: %w", full, err)
		}
		defer f.Close()
		if err := store.Put(r.Sum(), f); err != nil {
			return hash.Hash{}, fmt.Errorf("stash %s: %w", r.Path(), err)
		}
		return r.Sum(), nil
	}

	return pool.Run(ctx, limits, pool.CPU, control, pool.Control.Clone, reqs, do, nil)
}
