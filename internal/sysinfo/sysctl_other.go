//go:build !freebsd && !darwin && !netbsd && !openbsd

package sysinfo

import "errors"

// ErrUnsupported is returned by SysctlKernelInfo on platforms with no
// BSD-style sysctl(3) — there's nothing to shell out to or call into,
// unlike freebsd-version which at least has a stable CLI surface.
var ErrUnsupported = errors.New("sysinfo: sysctl kernel info unsupported on this platform")

// SysctlKernelInfo is a stub KernelConfigReader on non-BSD platforms,
// where there's no sysctl(3) to query. This tool only ever runs for
// real against a FreeBSD base directory; the stub exists so the module
// still builds during cross-platform development.
type SysctlKernelInfo struct{}

func (SysctlKernelInfo) Dir() (string, error)  { return "", ErrUnsupported }
func (SysctlKernelInfo) Conf() (string, error) { return "", ErrUnsupported }
func (SysctlKernelInfo) Arch() (string, error) { return "", ErrUnsupported }
func (SysctlKernelInfo) Jailed() (bool, error) { return false, ErrUnsupported }
