package fetchpipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
	"github.com/yonasBSD/freebsd-godate/internal/transport"
)

// AuthConfig names the version/identity a mirror must match before its
// key and tag are trusted, grounded on freebsd-update's
// Server::get_key_tag (src/server/keytag.rs).
type AuthConfig struct {
	Servername     string
	KeyFingerprint string // 64 lowercase hex chars, 
	Arch           string
	Release        string
	RelType        string
	HTTPClient     *http.Client
}

// Session is a mirror that has successfully authenticated, retained for
// the remainder of the run: the first mirror that successfully
// authenticates wins and is retained for every subsequent request.
type Session struct {
	Mirror transport.Mirror
	Base   *url.URL
	Tag    transport.KeyTag
}

// ErrNoMirror is returned when every candidate mirror failed to
// authenticate.
var ErrNoMirror = errors.New("fetchpipeline: no mirror authenticated")

// Establish resolves cfg.Servername to its candidate mirrors and tries
// each in turn, returning the first that authenticates.
func Establish(ctx context.Context, cfg AuthConfig) (*Session, error) {
	mirrors, err := transport.LookupMirrors(ctx, nil, cfg.Servername)
	if err != nil {
		return nil, fmt.Errorf("fetchpipeline: lookup %s: %w", cfg.Servername, err)
	}

	var lastErr error
	for _, m := range mirrors {
		sess, err := authenticate(ctx, cfg, m)
		if err != nil {
			lastErr = err
			continue
		}
		return sess, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate mirrors")
	}
	return nil, fmt.Errorf("%w: %v", ErrNoMirror, lastErr)
}

// authenticate performs the key/tag handshake against a single mirror,
// grounded on keytag.rs's get_key_tag: base URL is
// http://<host>/<release>-<reltype>/<arch>/, under which "pub.ssl" and
// "latest.ssl" live.
func authenticate(ctx context.Context, cfg AuthConfig, m transport.Mirror) (*Session, error) {
	base, err := url.Parse(fmt.Sprintf("http://%s/%s-%s/%s/", m.Host, cfg.Release, cfg.RelType, cfg.Arch))
	if err != nil {
		return nil, fmt.Errorf("mirror %s: bad base url: %w", m.Host, err)
	}

	keyURL, err := base.Parse("pub.ssl")
	if err != nil {
		return nil, err
	}
	key, err := transport.GetBytes(ctx, cfg.HTTPClient, keyURL.String())
	if err != nil {
		return nil, fmt.Errorf("mirror %s: fetch pub.ssl: %w", m.Host, err)
	}
	if got := hash.SumBytes(key).String(); !strings.EqualFold(got, cfg.KeyFingerprint) {
		return nil, fmt.Errorf("mirror %s: public key fingerprint mismatch: got %s want %s", m.Host, got, cfg.KeyFingerprint)
	}

	tagURL, err := base.Parse("latest.ssl")
	if err != nil {
		return nil, err
	}
	cipher, err := transport.GetBytes(ctx, cfg.HTTPClient, tagURL.String())
	if err != nil {
		return nil, fmt.Errorf("mirror %s: fetch latest.ssl: %w", m.Host, err)
	}

	plain, err := transport.DecryptTag(key, cipher)
	if err != nil {
		return nil, fmt.Errorf("mirror %s: decrypt tag: %w", m.Host, err)
	}
	tag, err := transport.ParseKeyTag(plain, cfg.Arch, cfg.Release, cfg.RelType)
	if err != nil {
		return nil, fmt.Errorf("mirror %s: parse tag: %w", m.Host, err)
	}

	return &Session{Mirror: m, Base: base, Tag: tag}, nil
}
