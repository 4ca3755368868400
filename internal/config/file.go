// Package config loads freebsd-update.conf-style configuration: a flat
// `Key Value` line format, merged over compiled-in defaults and
// overridden by command-line flags. Grounded on
// freebsd-update's src/config.rs's Config/load/load_config, restructured
// for Go: the decoder produces a File (only the fields a given line
// mentioned are set), which Resolve folds onto Defaults() using
// dario.cat/mergo — a dependency go-git's go.mod carries but never calls
// from its own code, given a job here: config-file-over-defaults instead
// of the options-over-options role it would otherwise be idle for.
package config

import (
	"regexp"

	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

// File is what the line decoder produces: exactly the fields mentioned
// in the config file are populated, everything else left at its Go
// zero value. KeepModifiedMetadata and CreateBootEnv are *bool rather
// than bool so that an explicit "no" survives the defaults merge —
// mergo only fills a nil pointer, never a non-nil one, so a pointer to
// false is left alone while an absent key (nil) inherits the default.
type File struct {
	KeyPrint   string
	ServerName string
	Components []metadata.Component

	IgnorePaths        []*regexp.Regexp
	IDSIgnorePaths     []*regexp.Regexp
	UpdateIfUnmodified []*regexp.Regexp
	MergeChanges       []*regexp.Regexp

	KeepModifiedMetadata *bool
	CreateBootEnv        *bool

	MailTo      string
	BaseDir     string
	WorkDir     string
	BootEnvRoot string
}

// Config is a fully resolved configuration: every bool field decided,
// every path default filled in, ready for finalize_components and use
// by the rest of the core. Produced by Resolve.
type Config struct {
	KeyPrint   string
	ServerName string
	Components []metadata.Component

	IgnorePaths        []*regexp.Regexp
	IDSIgnorePaths     []*regexp.Regexp
	UpdateIfUnmodified []*regexp.Regexp
	MergeChanges       []*regexp.Regexp

	KeepModifiedMetadata bool
	CreateBootEnv        bool

	MailTo      string
	BaseDir     string
	WorkDir     string
	BootEnvRoot string
}

func boolPtr(b bool) *bool { return &b }

// Defaults returns the compiled-in defaults freebsd-update's
// derivative(Default) attributes encode: BaseDir "/", WorkDir
// "/var/db/freebsd-update", CreateBootEnv and KeepModifiedMetadata both
// true, everything else left at its Go zero value.
func Defaults() *File {
	return &File{
		BaseDir:              "/",
		WorkDir:              "/var/db/freebsd-update",
		CreateBootEnv:        boolPtr(true),
		KeepModifiedMetadata: boolPtr(true),
	}
}
