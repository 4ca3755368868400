package fetchpipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/emirpasic/gods/v2/sets/hashset"
	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/bindiff"
	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/transport"
)

// PatchCandidate names one opportunity to turn cur's content into new's
// via a binary patch rather than a full download.
type PatchCandidate struct {
	Path     string
	From, To hash.Hash
}

// selectPatchCandidates implements patch-opportunity rule:
// "for each path where cur/old hashes match and new differs, request
// bp/<cur-hash>-<new-hash>" — evaluated against the change set diff.Run
// already produced, mirroring freebsd-update's src/cmd/fetch.rs's
// cur.intersect_files_hash(&old) done after filtering rather than
// before.
func selectPatchCandidates(old *metadata.Set, updates []diff.Update) []PatchCandidate {
	var out []PatchCandidate
	for _, u := range updates {
		if u.Cur.Kind() != metadata.KindFile || u.New.Kind() != metadata.KindFile {
			continue
		}
		if u.Cur.Sum() == u.New.Sum() {
			continue
		}
		of, ok := old.Get(u.Path)
		if !ok || of.Kind() != metadata.KindFile || of.Sum() != u.Cur.Sum() {
			continue
		}
		out = append(out, PatchCandidate{Path: u.Path, From: u.Cur.Sum(), To: u.New.Sum()})
	}
	return out
}

// patchName formats the "bp/<from>-<to>" request / describe.
func patchName(c PatchCandidate) string {
	return c.From.String() + "-" + c.To.String()
}

// applyPatches fetches and applies every candidate's binary patch,
// storing successful outputs into store under their target hash. It
// returns the set of target hashes it produced, so the caller can skip
// those when falling back to bulk fetch — a failure to fetch or apply
// any single patch is swallowed per-candidate (patches are a bandwidth
// optimization, not a correctness requirement), but it
// surfaces a dispatch-level error.
func applyPatches(ctx context.Context, limits pool.Limits, client *http.Client, fsys billy.Filesystem, base *url.URL, tmpDir string, store *objstore.Store, candidates []PatchCandidate) (*hashset.Set[hash.Hash], error) {
	produced := hashset.New[hash.Hash]()
	if len(candidates) == 0 {
		return produced, nil
	}

	reqs := make([]transport.FetchRequest, 0, len(candidates))
	byName := make(map[string]PatchCandidate, len(candidates))
	for _, c := range candidates {
		name := patchName(c)
		reqs = append(reqs, transport.FetchRequest{RelPath: "bp/" + name, DestName: name})
		byName[name] = c
	}

	fetched, err := transport.BulkFetch(ctx, limits, client, fsys, base, tmpDir, reqs)
	if err != nil {
		return nil, fmt.Errorf("fetchpipeline: dispatch patch fetch: %w", err)
	}

	var toApply []PatchCandidate
	for _, r := range fetched.Successes {
		toApply = append(toApply, byName[r.Request.DestName])
	}
	if len(toApply) == 0 {
		return produced, nil
	}

	control := pool.Control{FS: fsys}
	do := func(_ context.Context, ctrl pool.Control, c PatchCandidate) (hash.Hash, error) {
		return applyOnePatch(ctrl.FS, tmpDir, store, c)
	}

	applied, dispatchErr := pool.Run(ctx, limits, pool.CPU, control, pool.Control.Clone, toApply, do, nil)
	if dispatchErr != nil {
		return nil, fmt.Errorf("fetchpipeline: dispatch patch apply: %w", dispatchErr)
	}
	for _, h := range applied.Successes {
		produced.Add(h)
	}
	return produced, nil
}

func applyOnePatch(fsys billy.Filesystem, tmpDir string, store *objstore.Store, c PatchCandidate) (hash.Hash, error) {
	oldR, err := store.Open(c.From)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("open base %s: %w", c.From, err)
	}
	oldBytes, err := io.ReadAll(oldR)
	oldR.Close()
	if err != nil {
		return hash.Hash{}, fmt.Errorf("read base %s: %w", c.From, err)
	}

	patchPath := fsys.Join(tmpDir, patchName(c))
	pf, err := fsys.Open(patchPath)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("open patch %s: %w", patchPath, err)
	}
	defer pf.Close()

	var out bytes.Buffer
	if err := bindiff.Apply(&out, oldBytes, pf); err != nil {
		return hash.Hash{}, fmt.Errorf("apply patch %s: %w", patchName(c), err)
	}

	// Put re-verifies against c.To itself; a mismatch here means the
	// mirror's advertised target hash was wrong, not just a corrupt
	// transfer.
	if err := store.Put(c.To, bytes.NewReader(out.Bytes())); err != nil {
		return hash.Hash{}, fmt.Errorf("patch %s: %w", patchName(c), err)
	}
	return c.To, nil
}
