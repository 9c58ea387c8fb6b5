package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "restaurant.db", cfg.DatabasePath)
	assert.Equal(t, 180, cfg.Training.DemandWindowDays)
	assert.Equal(t, 0.2, cfg.Training.TestSplit)
	assert.Equal(t, []int{12, 13, 18, 19, 20}, cfg.Features.PeakHours)
	assert.Equal(t, 0.95, cfg.Inventory.ServiceLevel)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
database_path: /data/ops.db
training:
  demand_window_days: 90
  churn_threshold_days: 45
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/ops.db", cfg.DatabasePath)
	assert.Equal(t, 90, cfg.Training.DemandWindowDays)
	assert.Equal(t, 45, cfg.Training.ChurnThresholdDays)
	// Untouched keys keep their defaults.
	assert.Equal(t, 90, cfg.Training.KitchenWindowDays)
}

func TestLoadEnvOverridesAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model_dir: /from/yaml\n"), 0o644))

	t.Setenv("COVERS_MODEL_DIR", "/from/env")
	t.Setenv("COVERS_TRAINING__TEST_SPLIT", "0.3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.ModelDir)
	assert.Equal(t, 0.3, cfg.Training.TestSplit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "restaurant.db", cfg.DatabasePath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DatabasePath = "" }},
		{"split too large", func(c *Config) { c.Training.TestSplit = 1.0 }},
		{"negative ensemble weight", func(c *Config) { c.Training.EnsembleWeight = -0.1 }},
		{"zero demand window", func(c *Config) { c.Training.DemandWindowDays = 0 }},
		{"peak hour out of range", func(c *Config) { c.Features.PeakHours = []int{24} }},
		{"service level at 1", func(c *Config) { c.Inventory.ServiceLevel = 1.0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
