package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.GreaterOrEqual(t, cfg.Processing.NumCores, 1)
	assert.Equal(t, "tent", cfg.Kernel)
	assert.Contains(t, cfg.Stop.Criteria, "bounds")
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dtfiber.yaml")

	cfg := DefaultConfig()
	cfg.Volume.Phantom = "twist"
	cfg.Volume.Size = [3]int{20, 21, 3}
	cfg.Fiber.Type = "tensorline"
	cfg.Stop.Criteria = []string{"bounds", "steps"}
	cfg.Stop.MaxNumSteps = 17
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte(`
kernel: catmull-rom
fiber:
  stepSize: 0.25
stop:
  criteria: [length]
volume:
  size: [10, 11, 12]
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	def := DefaultConfig()

	assert.Equal(t, "catmull-rom", cfg.Kernel)
	assert.Equal(t, 0.25, cfg.Fiber.StepSize)
	assert.Equal(t, []string{"length"}, cfg.Stop.Criteria)
	assert.Equal(t, [3]int{10, 11, 12}, cfg.Volume.Size)

	// Unset keys keep their defaults.
	assert.Equal(t, def.Fiber.Integration, cfg.Fiber.Integration)
	assert.Equal(t, def.Stop.MaxLength, cfg.Stop.MaxLength)
	assert.Equal(t, def.Output.FibersCSV, cfg.Output.FibersCSV)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fiber: [unterminated"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"empty axis", func(c *Config) { c.Volume.Size[1] = 0 }},
		{"zero spacing", func(c *Config) { c.Volume.Spacing[2] = 0 }},
		{"negative step", func(c *Config) { c.Fiber.StepSize = -1 }},
		{"no criteria", func(c *Config) { c.Stop.Criteria = nil }},
		{"no seed spacing", func(c *Config) { c.Seeding.Spacing = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
