package fetchpipeline

import (
	"fmt"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
	"github.com/yonasBSD/freebsd-godate/internal/sysinfo"
)

// genericKernelComponent is force-added when EvalKernelGuard decides the
// running kernel config won't survive an upgrade unmodified.
const genericKernelComponent = metadata.Component("kernel/generic")

// EvalKernelGuard implements kernel-config guard: an
// inter-version upgrade against the root filesystem running a
// non-GENERIC kernel config can't expect that config to still exist in
// the target release, so the generic kernel subcomponent is forced into
// the install set and a warning is returned for the caller to display.
// Grounded on freebsd-update's src/cmd/upgrade.rs, the block right
// after components are pruned to "all".
//
// baseDir not being "/" means the target isn't the live root, in which
// case the running kernel tells us nothing about what the image being
// built should contain, so the guard never fires.
func EvalKernelGuard(reader sysinfo.KernelConfigReader, baseDir string) (force []metadata.Component, warning string, err error) {
	if baseDir != "/" {
		return nil, "", nil
	}

	kconf, err := reader.Conf()
	if err != nil {
		return nil, "", fmt.Errorf("fetchpipeline: kernel config guard: %w", err)
	}
	if kconf == "GENERIC" {
		return nil, "", nil
	}

	warning = fmt.Sprintf(
		"WARNING -- WARNING -- WARNING\n"+
			"This system is running a %s kernel, which is not a distributed\n"+
			"kernel config. As part of upgrading, this kernel will be\n"+
			"replaced with a GENERIC kernel.\n"+
			"WARNING -- WARNING -- WARNING",
		kconf,
	)
	return []metadata.Component{genericKernelComponent}, warning, nil
}
