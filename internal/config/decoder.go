package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// Decode reads a freebsd-update.conf-style document and returns the
// File it describes. Unknown keys are ignored (matching freebsd-update's
// trailing `_ => continue` arm); AllowAdd/AllowDelete set to "no" abort
// with a ConfigError since neither is supported here.
//
// Each line is: an optional leading run, truncated at the first '#',
// then split on the first space into a key and a value. Lines with no
// space at all (so no value) are skipped, same as freebsd-update's
// splitn(2, ' ') requiring both parts to be present.
func Decode(r io.Reader) (*File, error) {
	f := &File{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		key, val, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}

		if err := applyKey(f, key, val); err != nil {
			op := "syntax"
			if errors.Is(err, ErrUnsupportedKey) {
				op = "unsupported"
			}
			return nil, &ConfigError{Op: op, Line: lineNo, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Op: "read", Err: err}
	}
	return f, nil
}

func applyKey(f *File, key, val string) error {
	switch key {
	case "KeyPrint":
		f.KeyPrint = val
	case "ServerName":
		f.ServerName = val
	case "Components":
		for _, c := range fields(val) {
			f.Components = append(f.Components, metadata.Component(c))
		}
	case "IgnorePaths":
		return appendRegexes(&f.IgnorePaths, "IgnorePaths", val)
	case "IDSIgnorePaths":
		return appendRegexes(&f.IDSIgnorePaths, "IDSIgnorePaths", val)
	case "UpdateIfUnmodified":
		return appendRegexes(&f.UpdateIfUnmodified, "UpdateIfUnmodified", val)
	case "MergeChanges":
		return appendRegexes(&f.MergeChanges, "MergeChanges", val)
	case "BaseDir":
		if val != "" {
			f.BaseDir = val
		}
	case "WorkDir":
		if val != "" {
			f.WorkDir = val
		}
	case "CreateBootEnv":
		b, err := boolify(val)
		if err != nil {
			return fmt.Errorf("bad CreateBootEnv value %q: %w", val, err)
		}
		f.CreateBootEnv = &b
	case "KeepModifiedMetadata":
		b, err := boolify(val)
		if err != nil {
			return fmt.Errorf("bad KeepModifiedMetadata value %q: %w", val, err)
		}
		f.KeepModifiedMetadata = &b
	case "BootEnvRoot":
		if val != "" {
			f.BootEnvRoot = val
		}
	case "MailTo":
		f.MailTo = val
	case "AllowAdd":
		if b, err := boolify(val); err == nil && !b {
			return fmt.Errorf("%w: AllowAdd=no", ErrUnsupportedKey)
		}
	case "AllowDelete":
		if b, err := boolify(val); err == nil && !b {
			return fmt.Errorf("%w: AllowDelete=no", ErrUnsupportedKey)
		}
	}
	return nil
}

// fields splits a space-separated value, dropping empty fields (a run
// of consecutive spaces between entries), mirroring freebsd-update's
// `.split(' ')` plus `if comp.len() == 0 { continue }` guard.
func fields(val string) []string {
	var out []string
	for _, s := range strings.Split(val, " ") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// appendRegexes compiles each space-separated entry in val as an
// anchored-at-start regex (freebsd-update's regexify: paths are
// documented as prefix matches, implemented as `^`-prefixed grep -E).
func appendRegexes(dst *[]*regexp.Regexp, ewhat, val string) error {
	for _, p := range fields(val) {
		re, err := regexp.Compile("^" + p)
		if err != nil {
			return fmt.Errorf("building regex from %s: %w", ewhat, err)
		}
		*dst = append(*dst, re)
	}
	return nil
}

func boolify(val string) (bool, error) {
	switch val {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected yes or no, got %q", val)
	}
}
