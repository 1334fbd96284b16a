package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "niftiforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mr", cfg.Export.Domain)
	assert.Equal(t, "nifti", cfg.Export.Filetype)
	assert.Equal(t, []string{"orig"}, cfg.Export.State)
	assert.Equal(t, 5*time.Second, cfg.Watch.Settle)
}

func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
output_dir: /data/nifti
voxel_order: LPS
log_level: debug
metrics_file: /var/lib/node_exporter/niftiforge.prom
manifest: true
export:
  state: [orig, anon]
reader:
  sidecar_tags: [EchoTime, FlipAngle]
  workers: 3
watch:
  settle: 1500ms
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/nifti", cfg.OutputDir)
	assert.Equal(t, "LPS", cfg.VoxelOrder)
	assert.True(t, cfg.Manifest)
	assert.Equal(t, []string{"orig", "anon"}, cfg.Export.State)
	assert.Equal(t, []string{"EchoTime", "FlipAngle"}, cfg.Reader.SidecarTags)
	assert.Equal(t, 3, cfg.Reader.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Watch.Settle)

	// untouched keys keep their defaults
	assert.Equal(t, "mr", cfg.Export.Domain)
	assert.Equal(t, "**/*", cfg.Reader.Pattern)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = LoadFromFile(writeConfig(t, "export: [not, a, map]"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VoxelOrder = "LLS"
	cfg.LogLevel = "verbose"
	cfg.Export.Domain = ""
	cfg.Export.State = nil
	cfg.Reader.SidecarTags = []string{"EchoTme"}
	cfg.Reader.Workers = -1
	cfg.Watch.Settle = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"voxel_order",
		"log_level",
		"export.domain",
		"export.state",
		`did you mean "EchoTime"`,
		"reader.workers",
		"watch.settle",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VoxelOrder = "RAS"
	cfg.Watch.Settle = 2 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
