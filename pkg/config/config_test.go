package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoEnvSet(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "./coordination", cfg.CoordinationDir)
	require.True(t, cfg.EnableFastPath)
	require.Equal(t, 30, cfg.LockTimeoutSeconds)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("COORDINATION_DIR", "/tmp/coord")
	t.Setenv("TTL_HOURS", "48")
	t.Setenv("ENABLE_FAST_PATH", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/coord", cfg.CoordinationDir)
	require.Equal(t, 48, cfg.TTLHours)
	require.False(t, cfg.EnableFastPath)
}

func TestLoad_InvalidIntReturnsError(t *testing.T) {
	t.Setenv("TTL_HOURS", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestConfig_PathHelpers(t *testing.T) {
	cfg := Default()
	cfg.CoordinationDir = "/data/coord"
	require.Equal(t, "/data/coord/work_claims.json", cfg.CanonicalPath())
	require.Equal(t, "/data/coord/work_claims_fast.jsonl", cfg.FastPath())
	require.Equal(t, "/data/coord/archived_claims", cfg.ArchiveDir())
}
