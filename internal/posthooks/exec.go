package posthooks

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// runCmd runs name with args, surfacing a non-zero exit or spawn
// failure as an error rather than the original's printed warning —
// internal/install's caller decides how loudly to report a hook
// failure via the Hook's logger wrapper.
func runCmd(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func joinPath(base string, parts ...string) string {
	return filepath.Join(append([]string{base}, parts...)...)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
