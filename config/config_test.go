package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".", cfg.FileRoot)
	assert.Empty(t, cfg.HTTPAllowlist)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AGENTFORGE_FILE_ROOT", "/srv/agents")
	t.Setenv("AGENTFORGE_HTTP_ALLOWLIST", "api.example.com, internal.example.com")
	t.Setenv("AGENTFORGE_TOOL_TIMEOUT_SECONDS", "45")
	t.Setenv("AGENTFORGE_LOG_LEVEL", "debug")
	t.Setenv("AGENTFORGE_LOG_FORMAT", "text")

	cfg := FromEnv()

	assert.Equal(t, "/srv/agents", cfg.FileRoot)
	assert.Equal(t, []string{"api.example.com", "internal.example.com"}, cfg.HTTPAllowlist)
	assert.Equal(t, 45*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestFromEnv_InvalidTimeoutIgnored(t *testing.T) {
	t.Setenv("AGENTFORGE_TOOL_TIMEOUT_SECONDS", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
}
