package metadata

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sanitizePath makes a best-effort lossy conversion of a path that
// failed UTF-8 validation during metadata-line parsing into valid UTF-8,
// per the Open Question decision recorded in DESIGN.md: non-UTF-8 paths
// are rare (legacy Latin-1 filenames) and are not worth rejecting the
// whole manifest over, so they are coerced rather than propagated as
// errors.
func sanitizePath(raw string) string {
	t := unicode.UTF8.NewDecoder()
	out, _, err := transform.String(t, raw)
	if err != nil {
		return string([]rune(raw))
	}
	return out
}
