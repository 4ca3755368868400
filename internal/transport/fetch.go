package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

// MaxResponseBytes caps a single fetch response,: "transfer
// is limited to 1 GiB per response".
const MaxResponseBytes = 1 << 30

// smallGetLimit is the cap freebsd-update's get_bytes() uses for
// small in-memory fetches (key/tag blobs), "big enough to easily fit
// anything we expect, but not blow out memory if somebody messes with
// us."
const smallGetLimit = 10 * 1024 * 1024

// GetBytes performs a single GET against url and returns the body,
// capped at smallGetLimit — used for the key/tag exchange, not bulk
// fetch. Grounded on freebsd-update's src/server/http.rs's get_bytes().
func GetBytes(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: GET %s: status %s", rawURL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, smallGetLimit))
}

// FetchRequest names a single path layout entry ("m/",
// "f/", "bp/<from>-<to>", "t/<tag-hash>") to fetch relative to base.
type FetchRequest struct {
	// RelPath is the URL path segment appended to base, e.g.
	// "f/<hex>.gz" or "bp/<from>-<to>".
	RelPath string
	// DestName is the filename to write under the pool's destination
	// directory; defaults to path.Base(RelPath) when empty.
	DestName string
}

// FetchResult is one successful download.
type FetchResult struct {
	Request FetchRequest
	Bytes   int64
}

// BulkFetch downloads every request in reqs from base into destDir on
// fsys using the pool's Network tier, bulk fetch. Each
// response is capped at MaxResponseBytes. Grounded on
// freebsd-update's src/server/http.rs's fetch_files_from_to / the
// crate::core::pool::fetch pool it delegates to, generalized here onto
// internal/pool.Run instead of a bespoke pool type per.
func BulkFetch(ctx context.Context, limits pool.Limits, client *http.Client, fsys billy.Filesystem, base *url.URL, destDir string, reqs []FetchRequest) (pool.Result[FetchRequest, FetchResult], error) {
	control := pool.Control{HTTP: client, FS: fsys}

	do := func(ctx context.Context, ctrl pool.Control, req FetchRequest) (FetchResult, error) {
		return fetchOne(ctx, ctrl.HTTP, ctrl.FS, base, destDir, req)
	}

	return pool.Run(ctx, limits, pool.Network, control, pool.Control.Clone, reqs, do, nil)
}

func fetchOne(ctx context.Context, client *http.Client, fsys billy.Filesystem, base *url.URL, destDir string, req FetchRequest) (FetchResult, error) {
	u, err := base.Parse(req.RelPath)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: bad path %q: %w", req.RelPath, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FetchResult{}, err
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return FetchResult{}, fmt.Errorf("transport: %s: %w", req.RelPath, errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("transport: GET %s: status %s", u, resp.Status)
	}

	name := req.DestName
	if name == "" {
		name = path.Base(req.RelPath)
	}
	destPath := path.Join(destDir, name)

	out, err := fsys.Create(destPath)
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: create %s: %w", destPath, err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return FetchResult{}, fmt.Errorf("transport: write %s: %w", destPath, err)
	}
	return FetchResult{Request: req, Bytes: n}, nil
}

// errNotFound marks a fetch miss: sending remaining misses to
// bulk fetch assumes callers can tell a 404 apart from a harder
// transport failure.
var errNotFound = errors.New("transport: not found")

// IsNotFound reports whether err represents a 404 from a fetch.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}
