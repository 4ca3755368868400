//go:build freebsd || darwin || netbsd || openbsd

package sysinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func sysctlErr(name string, err error) error {
	return fmt.Errorf("sysinfo: sysctl %s: %w", name, err)
}

// SysctlKernelInfo is the real KernelConfigReader: it reads
// kern.bootfile, kern.ident, hw.machine, and security.jail.jailed via
// sysctl(3), the same four nodes freebsd-update's kernel.rs reads
// through the sysctl crate.
type SysctlKernelInfo struct{}

func (SysctlKernelInfo) Dir() (string, error) {
	sv, err := unix.Sysctl("kern.bootfile")
	if err != nil {
		return "", sysctlErr("kern.bootfile", err)
	}
	return mungeDir(sv), nil
}

func (SysctlKernelInfo) Conf() (string, error) {
	sv, err := unix.Sysctl("kern.ident")
	if err != nil {
		return "", sysctlErr("kern.ident", err)
	}
	return sv, nil
}

func (SysctlKernelInfo) Arch() (string, error) {
	sv, err := unix.Sysctl("hw.machine")
	if err != nil {
		return "", sysctlErr("hw.machine", err)
	}
	return sv, nil
}

func (SysctlKernelInfo) Jailed() (bool, error) {
	sv, err := unix.SysctlUint32("security.jail.jailed")
	if err != nil {
		return false, sysctlErr("security.jail.jailed", err)
	}
	return sv == 1, nil
}
