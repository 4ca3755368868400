// Package fetchpipeline implements fetch orchestration: the
// end-to-end sequence a run follows from mirror authentication through
// a ready-to-install state.Manifest, for both the intra-version update
// path and the inter-version upgrade path. Grounded step-for-step on
// freebsd-update's src/cmd/fetch.rs, generalizing its five bespoke
// worker-pool types onto internal/pool.Run.
package fetchpipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/diff"
	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/scanner"
	"github.com/yonasBSD/freebsd-godate/internal/state"
	"github.com/yonasBSD/freebsd-godate/internal/transport"
)

// Config bundles everything a run needs beyond the established Session:
// the policy diff.Run consults, the component selection step
// 4 applies before flattening, and the local filesystem layout.
type Config struct {
	// Version labels the resulting Manifest, e.g.
	// "13.2-RELEASE-p5" — display only, not consulted by the pipeline.
	Version string

	Policy              diff.Policy
	ComponentsInstalled bool // if true, the installed-components heuristic picks components and KeepComponents is ignored; if false, KeepComponents plus ForceComponents is applied (every component is kept when both are empty)
	KeepComponents      []metadata.Component
	// ForceComponents is merged into whichever of ComponentsInstalled's
	// heuristic or KeepComponents ends up selecting components, added
	// unconditionally — e.g. EvalKernelGuard's genericKernelComponent.
	ForceComponents []metadata.Component

	FS       billy.Filesystem
	BaseDir  string // the system root being updated, e.g. "/"
	FilesDir string // objstore root, e.g. "<statedir>/files"
	TmpDir   string // scratch dir for in-flight downloads

	Limits pool.Limits
	HTTP   *http.Client
}

// Result is what a completed Update or Upgrade run produces: the
// manifest ready to hand to the installer, and the list of paths
// modified_present chose to leave untouched (surfaced for a user-facing
// summary).
type Result struct {
	Manifest      *state.Manifest
	ModifiedFiles []string
}

// FetchManifests implements "find server, get metadata
// index, fetch missing metadata files" opening steps: it downloads
// sess's index-of-indexes document, then the INDEX-NEW and INDEX-OLD
// metadata blobs it names, returning their parsed Lines ready for
// Update or Upgrade. freebsd-update's comment on idx.rs notes
// INDEX-ALL is unused by fetch; this mirrors that by never requesting
// it (see gather's allGroup synthesis for where the union stands in).
func FetchManifests(ctx context.Context, cfg Config, sess *Session) (oldLines, newLines []metadata.Line, err error) {
	tidx, err := hash.FromHex(sess.Tag.TIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetchpipeline: tag tidx: %w", err)
	}

	idx, err := FetchIndexOfIndexes(ctx, cfg.HTTP, sess.Base, tidx)
	if err != nil {
		return nil, nil, err
	}
	if !idx.HasNew {
		return nil, nil, fmt.Errorf("fetchpipeline: index-of-indexes has no INDEX-NEW entry")
	}

	need := []hash.Hash{idx.New}
	if idx.HasOld {
		need = append(need, idx.Old)
	}

	store := objstore.New(cfg.FS, cfg.FilesDir)
	blobs, err := fetchMetadataBlobs(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.FilesDir, store, need)
	if err != nil {
		return nil, nil, err
	}

	newLines = blobs[idx.New]
	if idx.HasOld {
		oldLines = blobs[idx.Old]
	}
	return oldLines, newLines, nil
}

// FetchAllManifest downloads sess's INDEX-ALL metadata blob: the
// complete upstream record set for sess's release, independent of
// anything locally installed. check-sys and extract are the callers that
// need it — everything fetch/upgrade do deliberately avoids it per
// FetchManifests's doc comment.
func FetchAllManifest(ctx context.Context, cfg Config, sess *Session) ([]metadata.Line, error) {
	tidx, err := hash.FromHex(sess.Tag.TIdx)
	if err != nil {
		return nil, fmt.Errorf("fetchpipeline: tag tidx: %w", err)
	}

	idx, err := FetchIndexOfIndexes(ctx, cfg.HTTP, sess.Base, tidx)
	if err != nil {
		return nil, err
	}
	if !idx.HasAll {
		return nil, fmt.Errorf("fetchpipeline: index-of-indexes has no INDEX-ALL entry")
	}

	store := objstore.New(cfg.FS, cfg.FilesDir)
	blobs, err := fetchMetadataBlobs(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.FilesDir, store, []hash.Hash{idx.All})
	if err != nil {
		return nil, err
	}
	return blobs[idx.All], nil
}

// FetchContent downloads whichever of need isn't already in cfg's
// object store. extract is the one caller that needs a standalone
// content fetch outside of Update/Upgrade's own needed-hash bookkeeping.
func FetchContent(ctx context.Context, cfg Config, sess *Session, need []hash.Hash) error {
	store := objstore.New(cfg.FS, cfg.FilesDir)
	return bulkFetchContent(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.FilesDir, store, need)
}

// FetchMetadataRaw downloads the named index-of-indexes entries
// ("all", "old", "new") and returns each one's raw decompressed bytes,
// keyed by name. dump-metadata is the one caller that wants the blob
// text itself rather than metadata.ParseAllLines's parsed form.
func FetchMetadataRaw(ctx context.Context, cfg Config, sess *Session, names []string) (map[string][]byte, error) {
	tidx, err := hash.FromHex(sess.Tag.TIdx)
	if err != nil {
		return nil, fmt.Errorf("fetchpipeline: tag tidx: %w", err)
	}
	idx, err := FetchIndexOfIndexes(ctx, cfg.HTTP, sess.Base, tidx)
	if err != nil {
		return nil, err
	}

	byName := map[string]hash.Hash{}
	var need []hash.Hash
	for _, name := range names {
		var h hash.Hash
		var has bool
		switch name {
		case "all":
			h, has = idx.All, idx.HasAll
		case "old":
			h, has = idx.Old, idx.HasOld
		case "new":
			h, has = idx.New, idx.HasNew
		default:
			return nil, fmt.Errorf("fetchpipeline: unknown metadata name %q", name)
		}
		if !has {
			continue
		}
		byName[name] = h
		need = append(need, h)
	}

	store := objstore.New(cfg.FS, cfg.FilesDir)
	if _, err := fetchMetadataBlobs(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.FilesDir, store, need); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(byName))
	for name, h := range byName {
		r, err := store.Open(h)
		if err != nil {
			return nil, fmt.Errorf("fetchpipeline: open metadata blob %s: %w", name, err)
		}
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("fetchpipeline: read metadata blob %s: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// Update implements intra-version path: fetch new's
// metadata lines, diff against a scan of cur, patch or fetch whatever
// changed, and produce a SimpleUpdate manifest. No merge stage runs
// here — three-way merge is an inter-version concern.
func Update(ctx context.Context, cfg Config, sess *Session, oldLines, newLines []metadata.Line) (*Result, error) {
	g, err := gather(ctx, cfg, sess, oldLines, newLines)
	if err != nil {
		return nil, err
	}

	result, outcome := diff.Run(g.old, g.new, g.cur, cfg.Policy, nil)
	if len(outcome.MergeCandidates) > 0 {
		return nil, fmt.Errorf("fetchpipeline: %d merge candidate(s) found during an intra-version update; merges only apply to upgrades", len(outcome.MergeCandidates))
	}

	if err := fetchChangeSet(ctx, cfg, sess, g.old, g.cur, g.new, result); err != nil {
		return nil, err
	}

	return &Result{
		Manifest:      state.NewSimpleUpdate(cfg.Version, g.cur, g.new),
		ModifiedFiles: outcome.ModifiedFiles,
	}, nil
}

// Upgrade implements /'s inter-version path: everything
// Update does, plus running the merge stage over diff.Run's merge
// candidates and recording clean/conflicted results into a
// VersionUpgrade manifest.
func Upgrade(ctx context.Context, cfg Config, sess *Session, oldLines, newLines []metadata.Line) (*Result, error) {
	g, err := gather(ctx, cfg, sess, oldLines, newLines)
	if err != nil {
		return nil, err
	}

	result, outcome := diff.Run(g.old, g.new, g.cur, cfg.Policy, nil)

	merged, err := runMergeStage(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.FilesDir, objstore.New(cfg.FS, cfg.FilesDir), g.cur, g.new, outcome.MergeCandidates)
	if err != nil {
		return nil, err
	}

	// A merge candidate is, by construction, always present in
	// result.Updates (its cur and new sums are guaranteed to differ —
	// see selectMergeCandidates), so a clean merge only ever needs its
	// existing Update.New record refreshed to the merged hash, never a
	// new Update appended.
	for path := range merged.Clean {
		if nr, ok := g.new.Get(path); ok {
			for i, u := range result.Updates {
				if u.Path == path {
					result.Updates[i].New = nr
				}
			}
		}
	}

	if err := fetchChangeSet(ctx, cfg, sess, g.old, g.cur, g.new, result); err != nil {
		return nil, err
	}

	return &Result{
		Manifest:      state.NewVersionUpgrade(cfg.Version, g.cur, g.new, merged.Clean, merged.Conflict),
		ModifiedFiles: outcome.ModifiedFiles,
	}, nil
}

// gathered holds the three sets every run needs: the prior-release,
// target-release, and scanned-current-system metadata.
type gathered struct {
	old, new, cur *metadata.Set
}

// gather implements the scan-system step plus the component
// heuristic, which is the caller's job per
// internal/diff's Policy doc comment. It synthesizes the "all" group
// fetch avoids making (see DESIGN.md) as the union of old and new
// lines, since ComponentsInstalled only needs per-path component
// membership, which the union already supplies in full.
func gather(ctx context.Context, cfg Config, sess *Session, oldLines, newLines []metadata.Line) (*gathered, error) {
	oldGroup := metadata.FromLines(oldLines)
	newGroup := metadata.FromLines(newLines)
	allGroup := metadata.FromLines(append(append([]metadata.Line(nil), oldLines...), newLines...))

	if cfg.ComponentsInstalled {
		scanPaths := allGroup.Flatten().PathSet()
		installed := allGroup.ComponentsInstalled(scanPaths)
		installed = append(installed, cfg.ForceComponents...)
		oldGroup.KeepComponents(installed)
		newGroup.KeepComponents(installed)
	} else if keep := append(append([]metadata.Component{}, cfg.KeepComponents...), cfg.ForceComponents...); len(keep) > 0 {
		oldGroup.KeepComponents(keep)
		newGroup.KeepComponents(keep)
	}

	old := oldGroup.Flatten()
	new := newGroup.Flatten()

	scanSet := old.Clone()
	new.Each(func(r metadata.Record) {
		if _, ok := scanSet.Get(r.Path()); !ok {
			scanSet.Add(r)
		}
	})

	cur, err := scanner.Scan(ctx, cfg.Limits, cfg.FS, cfg.BaseDir, scanSet.Paths(), scanner.Options{Hash: true})
	if err != nil {
		return nil, fmt.Errorf("fetchpipeline: scan: %w", err)
	}

	return &gathered{old: old, new: new, cur: cur}, nil
}

// fetchChangeSet implements the rest of once diff.Run has
// produced a Result: stash cur's content for every update/removal (so
// a later abort can restore it), opportunistically patch, then bulk
// fetch whatever neither stashing nor patching could supply.
func fetchChangeSet(ctx context.Context, cfg Config, sess *Session, old, cur, new *metadata.Set, result *diff.Result) error {
	store := objstore.New(cfg.FS, cfg.FilesDir)

	if _, err := stashFiles(ctx, cfg.Limits, cfg.FS, cfg.BaseDir, store, cur); err != nil {
		return fmt.Errorf("fetchpipeline: stash: %w", err)
	}

	candidates := selectPatchCandidates(old, result.Updates)
	produced, err := applyPatches(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.TmpDir, store, candidates)
	if err != nil {
		return fmt.Errorf("fetchpipeline: patch: %w", err)
	}

	needed := neededHashes(result, produced, store)
	if len(needed) == 0 {
		return nil
	}

	if err := bulkFetchContent(ctx, cfg.Limits, cfg.HTTP, cfg.FS, sess.Base, cfg.FilesDir, store, needed); err != nil {
		return fmt.Errorf("fetchpipeline: fetch needed content: %w", err)
	}
	return nil
}

// bulkFetchContent downloads every hash in need from base's "f/" path
// directly into store's root and verifies each as it lands, the bulk
// counterpart to mergestage.go's single-object fetchOrOpen.
func bulkFetchContent(ctx context.Context, limits pool.Limits, client *http.Client, fsys billy.Filesystem, base *url.URL, filesDir string, store *objstore.Store, need []hash.Hash) error {
	var reqs []transport.FetchRequest
	for _, h := range need {
		if store.Has(h) {
			continue
		}
		name := h.String() + ".gz"
		reqs = append(reqs, transport.FetchRequest{RelPath: "f/" + name, DestName: name})
	}
	if len(reqs) == 0 {
		return nil
	}

	res, err := transport.BulkFetch(ctx, limits, client, fsys, base, filesDir, reqs)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d object(s) failed to fetch: %w", len(res.Failures), res.Failures[0].Err)
	}

	for _, h := range need {
		if err := store.Verify(h); err != nil {
			return err
		}
	}
	return nil
}

// neededHashes collects every File hash result still requires that
// isn't already in store (whether from a prior run, the stash step, or
// a successful patch).
func neededHashes(result *diff.Result, produced interface{ Contains(hash.Hash) bool }, store *objstore.Store) []hash.Hash {
	seen := make(map[hash.Hash]bool)
	var out []hash.Hash
	add := func(r metadata.Record) {
		if r.Kind() != metadata.KindFile {
			return
		}
		h := r.Sum()
		if seen[h] || store.Has(h) || produced.Contains(h) {
			return
		}
		seen[h] = true
		out = append(out, h)
	}
	for _, r := range result.Additions {
		add(r)
	}
	for _, u := range result.Updates {
		add(u.New)
	}
	return out
}

