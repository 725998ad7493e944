package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

func readPolicy(t *testing.T, workspaceRoot string) models.WorkspacePolicy {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(workspaceRoot, SettingsFile))
	require.NoError(t, err)
	var doc models.WorkspacePolicy
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestDerivePrefixPattern(t *testing.T) {
	pattern, err := DerivePrefixPattern([]string{"git", "status"})
	require.NoError(t, err)
	assert.Equal(t, `^git\s+status(\s.*)?$`, pattern)
}

func TestDerivePrefixPattern_Empty(t *testing.T) {
	_, err := DerivePrefixPattern(nil)
	require.Error(t, err)
}

func TestAppendAutoApproveCommand_CreatesFile(t *testing.T) {
	dir := t.TempDir()

	err := AppendAutoApproveCommand(dir, []string{"echo"})
	require.NoError(t, err)

	doc := readPolicy(t, dir)
	assert.Contains(t, doc.AutoApproveCommands, `^echo(\s.*)?$`)
}

func TestAppendAutoApproveCommand_AppendsToExisting(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, AppendAutoApproveCommand(dir, []string{"ls"}))
	require.NoError(t, AppendAutoApproveCommand(dir, []string{"echo"}))

	doc := readPolicy(t, dir)
	assert.Contains(t, doc.AutoApproveCommands, `^ls(\s.*)?$`)
	assert.Contains(t, doc.AutoApproveCommands, `^echo(\s.*)?$`)
}

func TestAppendAutoApproveCommand_DeduplicatesExisting(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, AppendAutoApproveCommand(dir, []string{"echo"}))
	require.NoError(t, AppendAutoApproveCommand(dir, []string{"echo"}))

	doc := readPolicy(t, dir)
	count := 0
	for _, p := range doc.AutoApproveCommands {
		if p == `^echo(\s.*)?$` {
			count++
		}
	}
	assert.Equal(t, 1, count, "pattern should appear exactly once")
}

func TestAppendAutoApproveCommand_MultiTokenPrefix(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, AppendAutoApproveCommand(dir, []string{"git", "push"}))

	doc := readPolicy(t, dir)
	assert.Contains(t, doc.AutoApproveCommands, `^git\s+push(\s.*)?$`)
}

func TestAppendAutoApproveCommand_EmptyPrefix(t *testing.T) {
	dir := t.TempDir()

	err := AppendAutoApproveCommand(dir, []string{})
	require.Error(t, err)
}
