// Package posthooks implements post-install hooks: the
// handful of system databases and caches an install or upgrade leaves
// stale (kernel module index, passwd/login.conf/capability dbs, TLS
// cert symlinks, manpage indices) plus a best-effort sshd restart.
// Grounded on freebsd-update's src/core/install/post.rs, one function
// per hook there; here each becomes a Hook value so internal/install's
// Config.PostHooks can run an arbitrary subset without this package
// knowing about install's Config shape.
package posthooks

import (
	"context"
	"os/exec"

	"github.com/yonasBSD/freebsd-godate/internal/logging"
)

// Hook is a single post-install action. Name is used for logging only.
type Hook struct {
	Name string
	Run  func(ctx context.Context) error
}

// ToFunc adapts h into the func(context.Context) error shape
// internal/install.Config.PostHooks expects, wrapping it with
// start/success/failure logging.
func (h Hook) ToFunc(log *logging.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if log == nil {
			log = logging.Nop()
		}
		log.Info("running post-install hook", logging.String("hook", h.Name))
		if err := h.Run(ctx); err != nil {
			log.Warn("post-install hook failed", logging.String("hook", h.Name), logging.Error(err))
			return err
		}
		log.Info("post-install hook done", logging.String("hook", h.Name))
		return nil
	}
}

// Standard returns the hooks freebsd-update's post.rs runs after a
// world install: kldxref, a passwd/login.conf/capability db rebuild,
// a cert rehash, and a manpage index rebuild. basedir is the
// installation root ("/" for a live system, a chroot path otherwise).
func Standard(basedir string) []Hook {
	return []Hook{
		KldxrefHook(basedir),
		PwdMkdbHook(basedir),
		CapMkdbHook(basedir),
		RehashCertsHook(basedir),
		MakewhatisHook(basedir),
	}
}

// KldxrefHook rebuilds the kernel module index under basedir/boot.
func KldxrefHook(basedir string) Hook {
	return Hook{Name: "kldxref", Run: func(ctx context.Context) error {
		return runCmd(ctx, "/usr/sbin/kldxref", "-R", joinPath(basedir, "boot"))
	}}
}

// PwdMkdbHook rebuilds the hashed password database.
func PwdMkdbHook(basedir string) Hook {
	return Hook{Name: "pwd_mkdb", Run: func(ctx context.Context) error {
		return runCmd(ctx, "/usr/sbin/pwd_mkdb",
			"-d", joinPath(basedir, "etc"),
			"-p", joinPath(basedir, "etc/master.passwd"))
	}}
}

// CapMkdbHook rebuilds the login.conf capability database.
func CapMkdbHook(basedir string) Hook {
	return Hook{Name: "cap_mkdb", Run: func(ctx context.Context) error {
		return runCmd(ctx, "/usr/bin/cap_mkdb", joinPath(basedir, "etc/login.conf"))
	}}
}

// RehashCertsHook rebuilds the trusted-cert hash symlinks certctl
// maintains under basedir's cert store.
func RehashCertsHook(basedir string) Hook {
	return Hook{Name: "rehash_certs", Run: func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "/usr/sbin/certctl", "rehash")
		cmd.Env = append(cmd.Environ(), "DESTDIR="+basedir)
		return cmd.Run()
	}}
}

// MakewhatisHook rebuilds the manpage whatis database for every
// man-tree that already has one, skipping trees that were never
// indexed rather than forcing an index where none existed.
func MakewhatisHook(basedir string) Hook {
	return Hook{Name: "makewhatis", Run: func(ctx context.Context) error {
		for _, tree := range []string{"usr/share/man", "usr/share/openssl/man"} {
			dbPath := joinPath(basedir, tree, "mandoc.db")
			if !fileExists(dbPath) {
				continue
			}
			if err := runCmd(ctx, "/usr/bin/makewhatis", joinPath(basedir, tree)); err != nil {
				return err
			}
		}
		return nil
	}}
}

// TrySSHDRestartHook restarts sshd after an upgrade if it's currently
// running; a no-op (not an error) when it isn't, mirroring
// try_sshd_restart's "don't even try if it's not up" check.
func TrySSHDRestartHook() Hook {
	return Hook{Name: "sshd_restart", Run: func(ctx context.Context) error {
		const svc = "/usr/sbin/service"
		if err := exec.CommandContext(ctx, svc, "sshd", "status").Run(); err != nil {
			return nil
		}
		return runCmd(ctx, svc, "sshd", "restart")
	}}
}
