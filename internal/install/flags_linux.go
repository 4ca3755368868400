//go:build linux

package install

import "errors"

// ErrFlagsUnsupported is returned when a record declares flags on a
// platform with no BSD-style chflags(2). Linux has an analogous
// FS_IMMUTABLE_FL bit reachable only through a different ioctl this
// tool doesn't implement; callers that need it can supply their own
// Privileged.
var ErrFlagsUnsupported = errors.New("install: immutable flags unsupported on this platform")

func chflags(path string, flags uint32) error {
	if flags == 0 {
		return nil
	}
	return ErrFlagsUnsupported
}
