// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoaderLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	loader := NewLoaderWithEnv("", "v1.2.3", func(string) (string, bool) { return "", false })
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, Defaults().HTTP.ListenAddr, cfg.HTTP.ListenAddr)
	require.Equal(t, "v1.2.3", cfg.Version)
}

func TestLoaderLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[http]
listen_addr = ":9090"

[store]
database_path = "/var/lib/m3uproxy/db.sqlite"
`), 0o644))

	loader := NewLoaderWithEnv(path, "", func(string) (string, bool) { return "", false })
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	require.Equal(t, "/var/lib/m3uproxy/db.sqlite", cfg.Store.DatabasePath)
	// untouched fields keep their default
	require.Equal(t, Defaults().Store.ArtifactDir, cfg.Store.ArtifactDir)
}

func TestLoaderLoadRejectsUnknownFileField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`not_a_real_field = true`), 0o644))

	loader := NewLoaderWithEnv(path, "", func(string) (string, bool) { return "", false })
	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoaderLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[http]
listen_addr = ":9090"
`), 0o644))

	env := map[string]string{"M3UPROXY_HTTP_LISTEN_ADDR": ":7070"}
	loader := NewLoaderWithEnv(path, "", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.HTTP.ListenAddr)
}

func TestLoaderLoadMissingFileIsNotAnError(t *testing.T) {
	loader := NewLoaderWithEnv(filepath.Join(t.TempDir(), "missing.toml"), "", func(string) (string, bool) { return "", false })
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, Defaults().HTTP.ListenAddr, cfg.HTTP.ListenAddr)
}

func TestLoaderLoadFailsValidationOnEmptyListenAddr(t *testing.T) {
	env := map[string]string{"M3UPROXY_HTTP_LISTEN_ADDR": ""}
	loader := NewLoaderWithEnv("", "", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	// An explicitly-empty env var counts as set: the lookup reports ok, so
	// mergeEnv assigns the (empty) value, which must then fail validation
	// rather than silently fall back to the default.
	_, err := loader.Load()
	require.Error(t, err)
}
