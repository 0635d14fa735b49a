package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysOntoDefaultsAndExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_AGENTCORE_MODEL", "gemini-2.5-pro")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := "model:\n  name: ${TEST_AGENTCORE_MODEL}\ncontext:\n  max_llm_token_limit: 4096\nshell:\n  require_shell_approval: false\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Model.Name)
	assert.Equal(t, 4096, cfg.Context.MaxLLMTokenLimit)
	assert.False(t, cfg.Shell.RequireShellApproval)
	// Untouched defaults survive the overlay.
	assert.Equal(t, 5, cfg.Context.TargetRecentTurns)
	assert.Equal(t, []string{"ls", "cat", "git", "docker", "kubectl", "grep", "find", "pwd", "echo"}, cfg.Shell.DefaultSafeCommands)
}

func TestVocabulariesOverlaysOnlyConfiguredLists(t *testing.T) {
	cfg := Default()
	cfg.Planning.PlanningKeywords = []string{"draft a roadmap"}

	v := cfg.Vocabularies()
	assert.Equal(t, []string{"draft a roadmap"}, v.PlanningKeywords)
	assert.NotEmpty(t, v.ActionVerbs, "unconfigured vocabularies keep their defaults")
}

func TestRateLimiterDisabledByDefault(t *testing.T) {
	cfg := Default()
	limiter, err := cfg.RateLimiter()
	require.NoError(t, err)
	assert.Nil(t, limiter)
}
