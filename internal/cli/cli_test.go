package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDefaults(t *testing.T) {
	cfgFile, dbPath, modelDir, logLevel, logFormat = "", "", "", "", ""

	cfg, _, err := setup()
	require.NoError(t, err)

	assert.Equal(t, "restaurant.db", cfg.DatabasePath)
	assert.Equal(t, "models", cfg.ModelDir)
}

func TestSetupFlagOverrides(t *testing.T) {
	cfgFile = ""
	dbPath = "/tmp/ops.db"
	modelDir = "/tmp/registry"
	logLevel = "debug"
	logFormat = "json"

	cfg, _, err := setup()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ops.db", cfg.DatabasePath)
	assert.Equal(t, "/tmp/registry", cfg.ModelDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	// Reset
	dbPath, modelDir, logLevel, logFormat = "", "", "", ""
}

func TestTrainTaskArgs(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"demand", "kitchen", "churn", "ltv", "inventory", "all"},
		trainCmd.ValidArgs)
}
