package fetchpipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/fetchpipeline"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/sysinfo"
)

func TestEvalKernelGuardSkipsNonRootBaseDir(t *testing.T) {
	reader := sysinfo.StaticKernelInfo{ConfVal: "CUSTOM"}
	force, warning, err := fetchpipeline.EvalKernelGuard(reader, "/mnt/image")
	require.NoError(t, err)
	assert.Empty(t, force)
	assert.Empty(t, warning)
}

func TestEvalKernelGuardSkipsGenericKernel(t *testing.T) {
	reader := sysinfo.StaticKernelInfo{ConfVal: "GENERIC"}
	force, warning, err := fetchpipeline.EvalKernelGuard(reader, "/")
	require.NoError(t, err)
	assert.Empty(t, force)
	assert.Empty(t, warning)
}

func TestEvalKernelGuardForcesGenericForCustomRootKernel(t *testing.T) {
	reader := sysinfo.StaticKernelInfo{ConfVal: "CUSTOM"}
	force, warning, err := fetchpipeline.EvalKernelGuard(reader, "/")
	require.NoError(t, err)
	assert.Equal(t, []metadata.Component{"kernel/generic"}, force)
	assert.Contains(t, warning, "CUSTOM")
	assert.Contains(t, warning, "WARNING")
}

func TestEvalKernelGuardPropagatesReaderError(t *testing.T) {
	reader := sysinfo.StaticKernelInfo{Err: assert.AnError}
	_, _, err := fetchpipeline.EvalKernelGuard(reader, "/")
	assert.ErrorIs(t, err, assert.AnError)
}
