package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, DefaultMegamorphicThreshold, cfg.MegamorphicThreshold)
	require.Equal(t, "Task", cfg.EntryArgument)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classflow.yaml")
	body := "megamorphic_threshold: 8\nentry_argument: Process\ncache_dir: /tmp/cf-cache\ndebug: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.MegamorphicThreshold)
	require.Equal(t, "Process", cfg.EntryArgument)
	require.Equal(t, "/tmp/cf-cache", cfg.CacheDir)
	require.True(t, cfg.Debug)
}

func TestLoadZeroThresholdFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("megamorphic_threshold: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultMegamorphicThreshold, cfg.MegamorphicThreshold)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("megamorphic_threshold: [not, a, number]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
