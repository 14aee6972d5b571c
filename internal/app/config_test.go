package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_RequiresPipelinePath(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline path is required")
}

func TestNewConfig_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{PipelinePath: "run.hcl"})
	require.NoError(t, err)

	assert.Equal(t, "modules", cfg.ModulesPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.WorkerCount)
}

func TestNewConfig_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{
		PipelinePath: "run.hcl",
		ModulesPath:  "mods",
		LogFormat:    "text",
		LogLevel:     "debug",
		WorkerCount:  8,
	})
	require.NoError(t, err)

	assert.Equal(t, "mods", cfg.ModulesPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.WorkerCount)
}
