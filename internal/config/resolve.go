package config

import (
	"dario.cat/mergo"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// Overrides carries the command-line values that take precedence over
// both the config file and the compiled-in defaults: freebsd-update's
// load_config applies exactly these three CL overrides (basedir,
// workdir, servername) after loading and before returning, via its
// `or!` macro.
type Overrides struct {
	BaseDir    string
	WorkDir    string
	ServerName string
}

// Resolve merges loaded over Defaults() and applies overrides, in that
// precedence order (overrides > file > defaults), producing a fully
// decided Config. loaded may be nil, meaning no config file was read.
func Resolve(loaded *File, overrides Overrides) (*Config, error) {
	f := &File{}
	if loaded != nil {
		*f = *loaded
	}

	if err := mergo.Merge(f, Defaults()); err != nil {
		return nil, &ConfigError{Op: "merge", Err: err}
	}

	if overrides.BaseDir != "" {
		f.BaseDir = overrides.BaseDir
	}
	if overrides.WorkDir != "" {
		f.WorkDir = overrides.WorkDir
	}
	if overrides.ServerName != "" {
		f.ServerName = overrides.ServerName
	}

	return &Config{
		KeyPrint:             f.KeyPrint,
		ServerName:           f.ServerName,
		Components:           f.Components,
		IgnorePaths:          f.IgnorePaths,
		IDSIgnorePaths:       f.IDSIgnorePaths,
		UpdateIfUnmodified:   f.UpdateIfUnmodified,
		MergeChanges:         f.MergeChanges,
		KeepModifiedMetadata: derefBool(f.KeepModifiedMetadata),
		CreateBootEnv:        derefBool(f.CreateBootEnv),
		MailTo:               f.MailTo,
		BaseDir:              f.BaseDir,
		WorkDir:              f.WorkDir,
		BootEnvRoot:          f.BootEnvRoot,
	}, nil
}

func derefBool(b *bool) bool { return b != nil && *b }

// hasSrcComponent reports whether cfg's Components list names "src" at
// the top level (not some unrelated "src/whatever" subcomponent),
// matching freebsd-update's exact-match retain predicate.
func hasSrcComponent(components []metadata.Component) bool {
	for _, c := range components {
		if c == "src" {
			return true
		}
	}
	return false
}
