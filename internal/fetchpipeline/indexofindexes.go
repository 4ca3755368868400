package fetchpipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/objstore"
	"github.com/yonasBSD/freebsd-godate/internal/pool"
	"github.com/yonasBSD/freebsd-godate/internal/transport"
)

// IndexOfIndexes is the tiny "t/<hash>" document a mirror serves: a
// handful of named hashes, each naming one "m/<hash>.gz" metadata blob.
// Grounded bit-exact on freebsd-update's MetadataIdx wire format
// (src/metadata/idx.rs's parse_metadataidx/INDEX-ALL,NEW,OLD), kept as
// plain text rather than adapting it to this codebase's own
// internal/metadata.Index (a different, path-keyed concept) because the
// wire format isn't ours to redesign.
type IndexOfIndexes struct {
	All, New, Old  hash.Hash
	HasAll         bool
	HasNew, HasOld bool
}

// ParseIndexOfIndexes parses a "t/" document's contents.
func ParseIndexOfIndexes(buf []byte) (IndexOfIndexes, error) {
	var idx IndexOfIndexes
	sc := bufio.NewScanner(bytes.NewReader(buf))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		i := bytes.IndexByte([]byte(line), '|')
		if i < 0 {
			continue
		}
		name, hexStr := line[:i], line[i+1:]
		switch name {
		case "INDEX-ALL", "INDEX-NEW", "INDEX-OLD":
		default:
			continue
		}
		h, err := hash.FromHex(hexStr)
		if err != nil {
			return IndexOfIndexes{}, fmt.Errorf("fetchpipeline: index-of-indexes %s: %w", name, err)
		}
		switch name {
		case "INDEX-ALL":
			idx.All, idx.HasAll = h, true
		case "INDEX-NEW":
			idx.New, idx.HasNew = h, true
		case "INDEX-OLD":
			idx.Old, idx.HasOld = h, true
		}
	}
	if err := sc.Err(); err != nil {
		return IndexOfIndexes{}, err
	}
	return idx, nil
}

// FetchIndexOfIndexes downloads and parses sess's "t/<tidx>" document,
// verifying it hashes to the tag's advertised tidx before trusting it
// (the tag blob is itself authenticated; this step extends that trust
// to the document it names).
func FetchIndexOfIndexes(ctx context.Context, client *http.Client, base *url.URL, tidx hash.Hash) (IndexOfIndexes, error) {
	u, err := base.Parse("t/" + tidx.String())
	if err != nil {
		return IndexOfIndexes{}, fmt.Errorf("fetchpipeline: bad t/ url: %w", err)
	}
	b, err := transport.GetBytes(ctx, client, u.String())
	if err != nil {
		return IndexOfIndexes{}, fmt.Errorf("fetchpipeline: fetch index-of-indexes: %w", err)
	}
	if got := hash.SumBytes(b); got != tidx {
		return IndexOfIndexes{}, fmt.Errorf("fetchpipeline: index-of-indexes hash mismatch: got %s want %s", got, tidx)
	}
	return ParseIndexOfIndexes(b)
}

// fetchMetadataBlobs downloads every hash in need that isn't already
// present in store, from base's "m/" path, then returns the parsed
// Lines of each requested hash in order.
func fetchMetadataBlobs(ctx context.Context, limits pool.Limits, client *http.Client, fsys billy.Filesystem, base *url.URL, filesDir string, store *objstore.Store, need []hash.Hash) (map[hash.Hash][]metadata.Line, error) {
	var reqs []transport.FetchRequest
	for _, h := range need {
		if store.Has(h) {
			continue
		}
		name := h.String() + ".gz"
		reqs = append(reqs, transport.FetchRequest{RelPath: "m/" + name, DestName: name})
	}
	if len(reqs) > 0 {
		res, err := transport.BulkFetch(ctx, limits, client, fsys, base, filesDir, reqs)
		if err != nil {
			return nil, fmt.Errorf("fetchpipeline: dispatch metadata fetch: %w", err)
		}
		if len(res.Failures) > 0 {
			return nil, fmt.Errorf("fetchpipeline: %d metadata blob(s) failed to fetch: %w", len(res.Failures), res.Failures[0].Err)
		}
	}

	out := make(map[hash.Hash][]metadata.Line, len(need))
	for _, h := range need {
		if err := store.Verify(h); err != nil {
			return nil, fmt.Errorf("fetchpipeline: metadata blob %s: %w", h, err)
		}
		r, err := store.Open(h)
		if err != nil {
			return nil, fmt.Errorf("fetchpipeline: open metadata blob %s: %w", h, err)
		}
		text, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("fetchpipeline: read metadata blob %s: %w", h, err)
		}
		lines, err := metadata.ParseAllLines(string(text))
		if err != nil {
			return nil, fmt.Errorf("fetchpipeline: parse metadata blob %s: %w", h, err)
		}
		out[h] = lines
	}
	return out, nil
}
