package config

import (
	"github.com/go-git/go-billy/v5"
)

// Load reads path off fsys, decodes it, and resolves it against
// Defaults() and overrides — the Go counterpart of freebsd-update's
// load_config_file plus load_config combined into one call.
func Load(fsys billy.Filesystem, path string, overrides Overrides) (*Config, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, &ConfigError{Op: "read", Err: err}
	}
	defer f.Close()

	file, err := Decode(f)
	if err != nil {
		return nil, err
	}

	cfg, err := Resolve(file, overrides)
	if err != nil {
		return nil, err
	}

	if err := FinalizeComponents(fsys, cfg); err != nil {
		return nil, &ConfigError{Op: "finalize", Err: err}
	}
	return cfg, nil
}
