package sysinfo

import "testing"

func TestMungeDirStripsTrailingKernel(t *testing.T) {
	cases := map[string]string{
		"/boot/kernel/kernel":        "/boot/kernel",
		"/boot/kernel.old/kernel":    "/boot/kernel.old",
		"/boot/kernel.old/notkernel": "/boot/kernel.old/notkernel",
	}
	for in, want := range cases {
		if got := mungeDir(in); got != want {
			t.Errorf("mungeDir(%q) = %q, want %q", in, got, want)
		}
	}
}
