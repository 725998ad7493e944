package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "intercom.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `default_workspace_root = "/workspace"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(3000), cfg.HTTPPort)
	assert.Equal(t, uint32(30), cfg.RetentionDays)
	assert.Equal(t, int64(3600), cfg.Timeouts.ApprovalSeconds)
	assert.Equal(t, int64(1800), cfg.Timeouts.PromptSeconds)
	assert.Equal(t, int64(0), cfg.Timeouts.WaitSeconds)
	assert.True(t, cfg.Stall.Enabled)
	assert.Equal(t, int64(300), cfg.Stall.InactivityThresholdSeconds)
	assert.Equal(t, int64(120), cfg.Stall.EscalationThresholdSeconds)
	assert.Equal(t, 3, cfg.Stall.MaxRetries)
	assert.Equal(t, "mcp", cfg.AgentProtocol)
}

func TestLoad_RejectsUnknownAgentProtocol(t *testing.T) {
	path := writeConfig(t, `
default_workspace_root = "/workspace"
agent_protocol = "carrier_pigeon"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_AcceptsACPAgentProtocol(t *testing.T) {
	path := writeConfig(t, `
default_workspace_root = "/workspace"
agent_protocol = "acp"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acp", cfg.AgentProtocol)
}

func TestLoad_MissingWorkspaceRoot(t *testing.T) {
	path := writeConfig(t, `http_port = 4000`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
default_workspace_root = "/workspace"
http_port = 9090
retention_days = 7

[timeouts]
approval_seconds = 60
prompt_seconds = 30
wait_seconds = 10

[[workspace]]
workspace_id = "ws1"
channel_id = "C123"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(9090), cfg.HTTPPort)
	assert.Equal(t, uint32(7), cfg.RetentionDays)
	assert.Equal(t, int64(60), cfg.Timeouts.ApprovalSeconds)
	require.Len(t, cfg.Workspace, 1)
	assert.Equal(t, "ws1", cfg.Workspace[0].WorkspaceID)
	assert.Equal(t, "C123", cfg.Workspace[0].ChannelID)
}

func TestLoadCredentials_MissingEnv(t *testing.T) {
	t.Setenv("SLACK_APP_TOKEN", "")
	t.Setenv("SLACK_BOT_TOKEN", "")

	_, err := LoadCredentials()
	require.Error(t, err)
}

func TestLoadCredentials_FromEnv(t *testing.T) {
	t.Setenv("SLACK_APP_TOKEN", "xapp-1")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")

	creds, err := LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "xapp-1", creds.SlackAppToken)
	assert.Equal(t, "xoxb-1", creds.SlackBotToken)
}
