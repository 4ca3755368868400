package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yonasBSD/freebsd-godate/internal/hash"
)

// Component is a hierarchical component name ("base", "base/etc"); see
// group.go for prefix-match semantics.
type Component string

// Line is one parsed metadata-file record together with the component it
// belongs to (freebsd-update's ParseLine, src/metadata/parse.rs).
type Line struct {
	Component Component
	Record    Record
}

// ParseLineErr reports a malformed metadata line, carrying the 1-based
// line number for diagnostics.
type ParseLineErr struct {
	LineNo int
	Err    error
}

func (e *ParseLineErr) Error() string {
	return fmt.Sprintf("metadata: line %d: %v", e.LineNo, e.Err)
}

func (e *ParseLineErr) Unwrap() error { return e.Err }

func parseOwnerModeFlags(uidS, gidS, modeS, flagsS string) (uid, gid, mode, flags uint32, err error) {
	u, err := strconv.ParseUint(uidS, 10, 32)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("metadata: bad uid %q: %w", uidS, err)
	}
	g, err := strconv.ParseUint(gidS, 10, 32)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("metadata: bad gid %q: %w", gidS, err)
	}
	m, err := strconv.ParseUint(modeS, 8, 32)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("metadata: bad mode %q: %w", modeS, err)
	}
	f, err := strconv.ParseUint(flagsS, 8, 32)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("metadata: bad flags %q: %w", flagsS, err)
	}
	return uint32(u), uint32(g), uint32(m), uint32(f), nil
}

// parseFileRow handles the ambiguity between a plain file row (5
// trailing fields) and a hardlink row (6 trailing fields, target
// non-empty) that ParseLine's fixed-length dispatch above cannot
// express without knowing the full field count up front.
func parseFileRow(component Component, path string, rest []string) (Line, error) {
	switch len(rest) {
	case 5:
		uid, gid, mode, flags, err := parseOwnerModeFlags(rest[0], rest[1], rest[2], rest[3])
		if err != nil {
			return Line{}, err
		}
		sum, err := hash.FromHex(rest[4])
		if err != nil {
			return Line{}, fmt.Errorf("metadata: bad sha256 %q: %w", rest[4], err)
		}
		return Line{Component: component, Record: NewFile(path, uid, gid, mode, flags, sum)}, nil
	case 6:
		if rest[5] == "" {
			uid, gid, mode, flags, err := parseOwnerModeFlags(rest[0], rest[1], rest[2], rest[3])
			if err != nil {
				return Line{}, err
			}
			sum, err := hash.FromHex(rest[4])
			if err != nil {
				return Line{}, fmt.Errorf("metadata: bad sha256 %q: %w", rest[4], err)
			}
			return Line{Component: component, Record: NewFile(path, uid, gid, mode, flags, sum)}, nil
		}
		// Non-empty trailing field denotes a hardlink; the sha256 field
		// is ignored semantically.
		return Line{Component: component, Record: NewHardlink(path, rest[5])}, nil
	default:
		return Line{}, fmt.Errorf("metadata: file line expects 5 or 6 trailing fields, got %d", len(rest))
	}
}

// ParseLine parses a single bit-exact metadata line:
//
//	component|subcomponent|path|kind|...kind-specific fields...
//
// kind is one of "f" (file or hardlink), "d" (directory), "L" (symlink),
// or "-" (absent).
func ParseLine(s string) (Line, error) {
	return parseOneLine(s)
}

// ParseAllLines parses a full metadata blob (one record per line, as
// produced by the manifest-index client) into a slice of Lines.
func ParseAllLines(text string) ([]Line, error) {
	lines := strings.Split(text, "\n")
	out := make([]Line, 0, len(lines))
	for i, raw := range lines {
		if raw == "" {
			continue
		}
		ln, err := parseOneLine(raw)
		if err != nil {
			return nil, &ParseLineErr{LineNo: i + 1, Err: err}
		}
		out = append(out, ln)
	}
	return out, nil
}

func parseOneLine(s string) (Line, error) {
	fields := strings.Split(s, "|")
	if len(fields) < 4 {
		return Line{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	comp, subcomp, path, kind := fields[0], fields[1], sanitizePath(fields[2]), fields[3]
	component := Component(comp)
	if subcomp != "" {
		component = Component(comp + "/" + subcomp)
	}
	rest := fields[4:]

	// The trailing-field layout is uniform across f/d/L rows: uid, gid,
	// mode, flags, then two more columns whose meaning is kind-specific
	// (sha256/hardlink-target for f, unused for d, target/unused for L).
	// Absent rows have no uid/gid/mode/flags columns at all, only five
	// empty fields.
	switch kind {
	case "f":
		return parseFileRow(component, path, rest)
	case "d":
		if len(rest) != 6 {
			return Line{}, fmt.Errorf("directory line expects 6 trailing fields, got %d", len(rest))
		}
		uid, gid, mode, flags, err := parseOwnerModeFlags(rest[0], rest[1], rest[2], rest[3])
		if err != nil {
			return Line{}, err
		}
		return Line{Component: component, Record: NewDirectory(path, uid, gid, mode, flags)}, nil
	case "L":
		if len(rest) != 6 {
			return Line{}, fmt.Errorf("symlink line expects 6 trailing fields, got %d", len(rest))
		}
		uid, gid, mode, flags, err := parseOwnerModeFlags(rest[0], rest[1], rest[2], rest[3])
		if err != nil {
			return Line{}, err
		}
		return Line{Component: component, Record: NewSymlink(path, rest[4], uid, gid, mode, flags)}, nil
	case "-":
		if len(rest) != 5 {
			return Line{}, fmt.Errorf("absent line expects 5 trailing fields, got %d", len(rest))
		}
		return Line{Component: component, Record: NewAbsent(path)}, nil
	default:
		return Line{}, fmt.Errorf("unknown kind %q", kind)
	}
}

// Serialize renders ln back to its bit-exact text form. Parsing
// Serialize's output with ParseAllLines must reproduce the same Line.
func Serialize(ln Line) string {
	comp, subcomp := splitComponent(ln.Component)
	r := ln.Record

	switch r.Kind() {
	case KindFile:
		return fmt.Sprintf("%s|%s|%s|f|%d|%d|%o|%o|%s|", comp, subcomp, r.Path(), r.uid, r.gid, r.mode, r.flags, r.sum.String())
	case KindHardlink:
		return fmt.Sprintf("%s|%s|%s|f|0|0|0|0||%s", comp, subcomp, r.Path(), r.target)
	case KindDirectory:
		return fmt.Sprintf("%s|%s|%s|d|%d|%d|%o|%o||", comp, subcomp, r.Path(), r.uid, r.gid, r.mode, r.flags)
	case KindSymlink:
		return fmt.Sprintf("%s|%s|%s|L|%d|%d|%o|%o|%s|", comp, subcomp, r.Path(), r.uid, r.gid, r.mode, r.flags, r.target)
	case KindAbsent:
		return fmt.Sprintf("%s|%s|%s|-|||||", comp, subcomp, r.Path())
	default:
		return ""
	}
}

func splitComponent(c Component) (top, sub string) {
	s := string(c)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
