package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyTag is the decrypted, parsed form of a mirror's signed tag blob
//: `freebsd-update|<arch>|<release>-<reltype>|<patch>|
// <metadata-index-hash>|<eol-unix-ts>`.
type KeyTag struct {
	Patch   uint32 // 0 means "no patch level", per ParseKeyTag
	TIdx    string
	EOLUnix int64
}

// ParseKeyTag parses and validates a decrypted tag string against the
// arch and release/reltype this run expects, grounded on
// freebsd-update's src/server/keytag.rs's KeyTag::from_str.
func ParseKeyTag(s, wantArch, wantRelease, wantRelType string) (KeyTag, error) {
	fields := strings.Split(s, "|")
	if len(fields) != 6 {
		return KeyTag{}, fmt.Errorf("transport: expected 6 tag fields, got %d", len(fields))
	}

	if fields[0] != "freebsd-update" {
		return KeyTag{}, fmt.Errorf("transport: expected freebsd-update, got %q", fields[0])
	}
	if fields[1] != wantArch {
		return KeyTag{}, fmt.Errorf("transport: expected arch %s, got %s", wantArch, fields[1])
	}

	releaseField := fields[2]
	if !strings.HasPrefix(releaseField, wantRelease) {
		return KeyTag{}, fmt.Errorf("transport: expected release %s, got %s", wantRelease, releaseField)
	}
	if !strings.HasSuffix(releaseField, wantRelType) {
		return KeyTag{}, fmt.Errorf("transport: expected reltype %s, got %s", wantRelType, releaseField)
	}

	patch, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return KeyTag{}, fmt.Errorf("transport: bad patch: %w", err)
	}

	tidx := fields[4]

	eol, err := strconv.ParseInt(strings.TrimSpace(fields[5]), 10, 64)
	if err != nil {
		return KeyTag{}, fmt.Errorf("transport: bad eol timestamp: %w", err)
	}

	return KeyTag{Patch: uint32(patch), TIdx: tidx, EOLUnix: eol}, nil
}
