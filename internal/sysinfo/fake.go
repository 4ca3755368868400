package sysinfo

import "context"

// StaticVersionReporter is a VersionReporter fake for tests: it always
// returns Version, or Err if set.
type StaticVersionReporter struct {
	Version SystemVersion
	Err     error
}

func (s StaticVersionReporter) Get(ctx context.Context) (SystemVersion, error) {
	if s.Err != nil {
		return SystemVersion{}, s.Err
	}
	return s.Version, nil
}

// StaticKernelInfo is a KernelConfigReader fake for tests.
type StaticKernelInfo struct {
	DirVal    string
	ConfVal   string
	ArchVal   string
	JailedVal bool
	Err       error
}

func (s StaticKernelInfo) Dir() (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.DirVal, nil
}

func (s StaticKernelInfo) Conf() (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.ConfVal, nil
}

func (s StaticKernelInfo) Arch() (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.ArchVal, nil
}

func (s StaticKernelInfo) Jailed() (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.JailedVal, nil
}
