package sysinfo

import "strings"

// KernelConfigReader reports facts about the currently running kernel:
// where its files live, what config it was built from, what
// architecture it targets, and whether the caller is jailed. Grounded
// on freebsd-update's src/info/kernel.rs, one method per
// mk_sysctl_func! instantiation there.
type KernelConfigReader interface {
	// Dir returns the directory the running kernel's files live under,
	// e.g. "/boot/kernel".
	Dir() (string, error)
	// Conf returns the kernel config name, e.g. "GENERIC".
	Conf() (string, error)
	// Arch returns the machine architecture, e.g. "amd64".
	Arch() (string, error)
	// Jailed reports whether the caller is running inside a jail.
	Jailed() (bool, error)
}

// mungeDir strips a trailing "/kernel" from a kern.bootfile value, the
// same trim munge::dir applies — kern.bootfile names the kernel binary
// itself, but callers want the directory it lives in.
func mungeDir(bootfile string) string {
	const suffix = "/kernel"
	if strings.HasSuffix(bootfile, suffix) {
		return bootfile[:len(bootfile)-len(suffix)]
	}
	return bootfile
}
