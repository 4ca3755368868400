package sysinfo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/sysinfo"
)

func TestParseReleaseWithPatch(t *testing.T) {
	r, err := sysinfo.ParseRelease("12.3-RELEASE-p2")
	require.NoError(t, err)
	assert.Equal(t, "12.3", r.Release)
	assert.Equal(t, "RELEASE", r.RelType)
	require.NotNil(t, r.Patch)
	assert.Equal(t, uint32(2), *r.Patch)
}

func TestParseReleaseWithoutPatch(t *testing.T) {
	r, err := sysinfo.ParseRelease("12.3-STABLE")
	require.NoError(t, err)
	assert.Equal(t, "12.3", r.Release)
	assert.Equal(t, "STABLE", r.RelType)
	assert.Nil(t, r.Patch)
}

func TestParseReleaseRejectsMissingType(t *testing.T) {
	_, err := sysinfo.ParseRelease("garbage")
	assert.Error(t, err)
}

func TestReleaseStringRoundTrips(t *testing.T) {
	r, err := sysinfo.ParseRelease("12.3-RELEASE-p2")
	require.NoError(t, err)
	assert.Equal(t, "12.3-RELEASE-p2", r.String())

	r2, err := sysinfo.ParseRelease("12.3-STABLE")
	require.NoError(t, err)
	assert.Equal(t, "12.3-STABLE", r2.String())
}

func TestSystemVersionMaxPicksHigherPatch(t *testing.T) {
	kernel, err := sysinfo.ParseRelease("12.3-RELEASE")
	require.NoError(t, err)
	user, err := sysinfo.ParseRelease("12.3-RELEASE-p2")
	require.NoError(t, err)

	v := sysinfo.SystemVersion{Kernel: kernel, User: user}
	assert.Equal(t, "12.3-RELEASE-p2", v.Max().String())
	assert.Equal(t, "12.3-RELEASE-p2", v.String())
}

func TestSystemVersionMaxPicksHigherRelease(t *testing.T) {
	kernel, err := sysinfo.ParseRelease("12.3-STABLE")
	require.NoError(t, err)
	user, err := sysinfo.ParseRelease("12.3-RELEASE-p2")
	require.NoError(t, err)

	v := sysinfo.SystemVersion{Kernel: kernel, User: user}
	// "STABLE" > "RELEASE" lexicographically, so kernel wins despite
	// user carrying a patch level — matches the Rust derive(Ord) which
	// compares reltype before patch.
	assert.Equal(t, "12.3-STABLE", v.Max().String())
}

func TestStaticVersionReporterReturnsConfiguredValue(t *testing.T) {
	kernel, _ := sysinfo.ParseRelease("14.1-RELEASE")
	reporter := sysinfo.StaticVersionReporter{Version: sysinfo.SystemVersion{Kernel: kernel, User: kernel}}

	v, err := reporter.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "14.1-RELEASE", v.String())
}

func TestStaticVersionReporterReturnsConfiguredError(t *testing.T) {
	wantErr := assert.AnError
	reporter := sysinfo.StaticVersionReporter{Err: wantErr}

	_, err := reporter.Get(context.Background())
	assert.ErrorIs(t, err, wantErr)
}
