package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

func TestLoad_MissingFileIsDenyAll(t *testing.T) {
	root := t.TempDir()
	policy := Load(root, zap.NewNop())
	assert.Equal(t, models.DefaultWorkspacePolicy(), policy)
}

func TestLoad_MalformedJSONIsDenyAll(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".intercom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, SettingsFile), []byte("{not json"), 0o644))

	policy := Load(root, zap.NewNop())
	assert.False(t, policy.Enabled)
}

func TestLoad_ValidPolicyAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".intercom"), 0o755))
	doc := `{"enabled": true, "tools": ["read_file"]}`
	require.NoError(t, os.WriteFile(filepath.Join(root, SettingsFile), []byte(doc), 0o644))

	policy := Load(root, zap.NewNop())
	assert.True(t, policy.Enabled)
	assert.Equal(t, []string{"read_file"}, policy.Tools)
	assert.Equal(t, models.RiskLow, policy.RiskLevelThreshold)
	assert.Equal(t, uint64(300), policy.SummaryIntervalSeconds)
}
