package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_AppliesDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "config/skills.json", cfg.SkillsPath)
	assert.Equal(t, "config/ops.json", cfg.OpsPath)
	assert.Equal(t, "config/capabilities.json", cfg.CapabilitiesPath)
	assert.Equal(t, 30*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 3600, cfg.ApprovalTTLSeconds)
	assert.Equal(t, "sor", cfg.RedisNamespace)
	assert.NotNil(t, cfg.Logger())
}

func TestNewConfig_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SOR_SKILLS_PATH", "/tmp/skills.json")
	t.Setenv("SOR_ADAPTER_TIMEOUT", "5s")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/skills.json", cfg.SkillsPath)
	assert.Equal(t, 5*time.Second, cfg.AdapterTimeout)
}

func TestNewConfig_OptionsOverrideEnv(t *testing.T) {
	t.Setenv("SOR_SKILLS_PATH", "/tmp/skills.json")

	cfg, err := NewConfig(WithSkillsPath("config/override.json"))
	require.NoError(t, err)

	assert.Equal(t, "config/override.json", cfg.SkillsPath)
}

func TestNewConfig_OverlayPathsFromEnvAreCommaSeparated(t *testing.T) {
	t.Setenv("SOR_OVERLAY_PATHS", "overlay-a.yaml, overlay-b.yaml")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"overlay-a.yaml", "overlay-b.yaml"}, cfg.OverlayPaths)
}

func TestWithOverlays(t *testing.T) {
	cfg, err := NewConfig(WithOverlays("a.yaml", "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, cfg.OverlayPaths)
}

func TestWithAdapterTimeout_RejectsNonPositive(t *testing.T) {
	_, err := NewConfig(WithAdapterTimeout(0))
	assert.Error(t, err)
}

func TestWithApprovalTTL_RejectsNonPositive(t *testing.T) {
	_, err := NewConfig(WithApprovalTTL(-1))
	assert.Error(t, err)
}

func TestWithRedis_SetsURLAndNamespace(t *testing.T) {
	cfg, err := NewConfig(WithRedis("redis://localhost:6379", "sor-prod"))
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "sor-prod", cfg.RedisNamespace)
}

func TestWithRedis_EmptyNamespaceKeepsDefault(t *testing.T) {
	cfg, err := NewConfig(WithRedis("redis://localhost:6379", ""))
	require.NoError(t, err)
	assert.Equal(t, "sor", cfg.RedisNamespace)
}

func TestWithLogger_OverridesDefaultLogger(t *testing.T) {
	custom := NoopLogger{}
	cfg, err := NewConfig(WithLogger(custom))
	require.NoError(t, err)
	assert.Equal(t, custom, cfg.Logger())
}

func TestConfig_Validate_RejectsEmptyPaths(t *testing.T) {
	cfg := defaultConfig()
	cfg.SkillsPath = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNonPositiveAdapterTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.AdapterTimeout = 0
	assert.Error(t, cfg.Validate())
}
