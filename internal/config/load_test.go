package config_test

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/config"
	"github.com/yonasBSD/freebsd-godate/internal/metadata"
)

func TestLoadEndToEnd(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create("/etc/freebsd-update.conf")
	require.NoError(t, err)
	_, err = f.Write([]byte("ServerName update.FreeBSD.org\nComponents src world\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := config.Load(fs, "/etc/freebsd-update.conf", config.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "update.FreeBSD.org", cfg.ServerName)
	assert.Equal(t, "/", cfg.BaseDir)
	// src dropped: no usr/src/COPYRIGHT under "/" in this fixture.
	assert.NotContains(t, cfg.Components, metadata.Component("src"))
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	fs := memfs.New()
	_, err := config.Load(fs, "/etc/freebsd-update.conf", config.Overrides{})
	require.Error(t, err)
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "read", cerr.Op)
}

func TestLoadSyntaxErrorPropagates(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create("/etc/freebsd-update.conf")
	require.NoError(t, err)
	_, err = f.Write([]byte("CreateBootEnv maybe\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = config.Load(fs, "/etc/freebsd-update.conf", config.Overrides{})
	require.Error(t, err)
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "syntax", cerr.Op)
}
