package fetchpipeline

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/merge"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/state"
	"github.com/yonasBSD/freebsd-godate/internal/transport"
)

// MergeOutcome is the result of running every merge candidate diff.Run
// found: a path either merged cleanly (and new's record was updated in
// place to the merged content's hash, so the installer applies the
// merge result instead of the unmodified release content) or still
// carries conflict markers awaiting resolution driver.
type MergeOutcome struct {
	Clean    map[string]state.MergeRecord
	Conflict map[string]state.MergeRecord
}

// runMergeStage handles each candidate diff.Run
// selected: fetch the old-release content if it isn't already in
// store, three-way merge it against cur and new, store the result, and
// — for clean merges — overwrite new's record for that path so
// downstream installation picks up the merge instead of new's raw
// content. Grounded on freebsd-update's src/cmd/upgrade.rs to_merge
// handling and src/core/merge.rs's do_merge.
func runMergeStage(ctx context.Context, limits pool.Limits, client *http.Client, fsys billy.Filesystem, base *url.URL, filesDir string, store *objstore.Store, cur, new *metadata.Set, candidates []diff.MergeCandidate) (MergeOutcome, error) {
	out := MergeOutcome{Clean: map[string]state.MergeRecord{}, Conflict: map[string]state.MergeRecord{}}

	for _, c := range candidates {
		cr, ok := cur.Get(c.Path)
		if !ok || cr.Kind() != metadata.KindFile {
			continue
		}
		nr, ok := new.Get(c.Path)
		if !ok || nr.Kind() != metadata.KindFile {
			continue
		}

		oldBytes, err := fetchOrOpen(ctx, limits, client, fsys, base, filesDir, store, c.Old.Sum())
		if err != nil {
			return out, fmt.Errorf("fetchpipeline: merge %s: fetch old content: %w", c.Path, err)
		}
		curBytes, err := readStoredOrOpen(store, cr.Sum())
		if err != nil {
			return out, fmt.Errorf("fetchpipeline: merge %s: read cur content: %w", c.Path, err)
		}
		newBytes, err := fetchOrOpen(ctx, limits, client, fsys, base, filesDir, store, nr.Sum())
		if err != nil {
			return out, fmt.Errorf("fetchpipeline: merge %s: fetch new content: %w", c.Path, err)
		}

		merged, conflict := merge.ThreeWay(oldBytes, curBytes, newBytes)
		resSum := hash.SumBytes(merged)
		if err := store.Put(resSum, bytes.NewReader(merged)); err != nil {
			return out, fmt.Errorf("fetchpipeline: merge %s: store result: %w", c.Path, err)
		}

		rec := state.MergeRecord{Old: c.Old.Sum(), New: nr.Sum(), Cur: cr.Sum(), Res: resSum}
		if conflict {
			out.Conflict[c.Path] = rec
			continue
		}
		out.Clean[c.Path] = rec
		new.Add(metadata.WithSum(nr, resSum))
	}

	return out, nil
}

// fetchOrOpen returns h's content, fetching it from base's "f/" path
// directly into filesDir (the store's own root) first if it isn't
// already cached — objstore's "<hex>.gz" naming is exactly the wire
// layout a mirror serves, so the fetched file needs no translation
// before store.Open can read it back.
func fetchOrOpen(ctx context.Context, limits pool.Limits, client *http.Client, fsys billy.Filesystem, base *url.URL, filesDir string, store *objstore.Store, h hash.Hash) ([]byte, error) {
	if !store.Has(h) {
		name := h.String() + ".gz"
		req := transport.FetchRequest{RelPath: "f/" + name, DestName: name}
		res, err := transport.BulkFetch(ctx, limits, client, fsys, base, filesDir, []transport.FetchRequest{req})
		if err != nil {
			return nil, err
		}
		if len(res.Failures) > 0 {
			return nil, fmt.Errorf("fetch f/%s: %w", name, res.Failures[0].Err)
		}
		if err := store.Verify(h); err != nil {
			return nil, err
		}
	}
	return readStoredOrOpen(store, h)
}

func readStoredOrOpen(store *objstore.Store, h hash.Hash) ([]byte, error) {
	r, err := store.Open(h)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
