package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/config"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mongosrv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 28000\nauth:\n  enabled: false\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 28000, cfg.Port)
	require.False(t, cfg.Auth.Enabled)
	require.Equal(t, "0.0.0.0", cfg.Host) // untouched key keeps its default
}

func TestGetAndSetDefaultConfig(t *testing.T) {
	original := config.GetDefaultConfig()
	defer config.SetDefaultConfig(original)

	config.SetDefaultConfig("host: \"127.0.0.1\"\nport: 1\n")
	cfg, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Host)
}
