// Package sysinfo defines the running-system collaborators the core
// needs but can't implement portably: what release the kernel and
// userland report themselves as, and what kernel config/architecture
// is actually booted. Grounded on freebsd-update's src/info/version.rs
// and src/info/kernel.rs; spec.md calls OS-specific helpers out of
// scope as implementations, not as the interfaces the core calls
// through, so those interfaces live here alongside a real
// freebsd-version/sysctl-shelling implementation and a fake for tests.
package sysinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Release is one <release>-<reltype>[-p<patch>] tuple, e.g.
// "13.2-RELEASE-p5" parsed into "13.2", "RELEASE", and 5.
type Release struct {
	Release string
	RelType string
	Patch   *uint32
}

// String renders the same "<release>-<reltype>[-p<patch>]" form it was
// parsed from.
func (r Release) String() string {
	if r.Patch == nil {
		return fmt.Sprintf("%s-%s", r.Release, r.RelType)
	}
	return fmt.Sprintf("%s-%s-p%d", r.Release, r.RelType, *r.Patch)
}

// ParseRelease parses a "<release>-<reltype>[-p<patch>]" string.
// Mirrors AVersion's FromStr impl field for field, including its
// release/reltype split on the first '-' rather than on '.'.
func ParseRelease(s string) (Release, error) {
	relBit, patchBit, hasPatch := strings.Cut(s, "-p")

	// Take the first two "-"-separated segments, same as the original's
	// split("-").next()/.next() — anything past the second is ignored.
	parts := strings.Split(relBit, "-")
	if len(parts) < 1 || parts[0] == "" {
		return Release{}, fmt.Errorf("sysinfo: %q: no version", s)
	}
	if len(parts) < 2 || parts[1] == "" {
		return Release{}, fmt.Errorf("sysinfo: %q: no version type", s)
	}

	r := Release{Release: parts[0], RelType: parts[1]}
	if hasPatch {
		p, err := strconv.ParseUint(patchBit, 10, 32)
		if err != nil {
			return Release{}, fmt.Errorf("sysinfo: %q: bad patch version: %w", s, err)
		}
		pv := uint32(p)
		r.Patch = &pv
	}
	return r, nil
}

// compare orders two Releases the way Rust's derived Ord does on
// (release, reltype, patch): lexicographic by field in that order, with
// an absent patch sorting below any present one.
func compare(a, b Release) int {
	if c := strings.Compare(a.Release, b.Release); c != 0 {
		return c
	}
	if c := strings.Compare(a.RelType, b.RelType); c != 0 {
		return c
	}
	switch {
	case a.Patch == nil && b.Patch == nil:
		return 0
	case a.Patch == nil:
		return -1
	case b.Patch == nil:
		return 1
	case *a.Patch < *b.Patch:
		return -1
	case *a.Patch > *b.Patch:
		return 1
	default:
		return 0
	}
}

// SystemVersion is the kernel/userland version pair freebsd-version -ku
// reports.
type SystemVersion struct {
	Kernel Release
	User   Release
}

// Max returns whichever of Kernel/User compares higher, the "current"
// version freebsd-update's Version::fmt presumes.
func (v SystemVersion) Max() Release {
	if compare(v.Kernel, v.User) >= 0 {
		return v.Kernel
	}
	return v.User
}

func (v SystemVersion) String() string {
	return v.Max().String()
}

// VersionReporter reports the live system's kernel and userland
// versions, the collaborator internal/cli's release lookup calls through
// (when no version override is given) rather than shelling out directly.
type VersionReporter interface {
	Get(ctx context.Context) (SystemVersion, error)
}

// ShellVersionReporter is the real VersionReporter: it runs
// "<baseDir>/bin/freebsd-version -ku" with ROOT=baseDir, the same
// invocation run_freebsd_version makes.
type ShellVersionReporter struct {
	BaseDir string
}

func (s ShellVersionReporter) Get(ctx context.Context) (SystemVersion, error) {
	bin := strings.TrimRight(s.BaseDir, "/") + "/bin/freebsd-version"
	cmd := exec.CommandContext(ctx, bin, "-ku")
	cmd.Env = append(cmd.Environ(), "ROOT="+s.BaseDir)

	out, err := cmd.Output()
	if err != nil {
		return SystemVersion{}, fmt.Errorf("sysinfo: running freebsd-version: %w", err)
	}
	return parseFreebsdVersion(out)
}

func parseFreebsdVersion(out []byte) (SystemVersion, error) {
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) != 2 {
		return SystemVersion{}, fmt.Errorf("sysinfo: expected 2 lines from freebsd-version, got %d", len(lines))
	}

	kernel, err := ParseRelease(lines[0])
	if err != nil {
		return SystemVersion{}, fmt.Errorf("sysinfo: kernel: %w", err)
	}
	user, err := ParseRelease(lines[1])
	if err != nil {
		return SystemVersion{}, fmt.Errorf("sysinfo: user: %w", err)
	}
	return SystemVersion{Kernel: kernel, User: user}, nil
}
