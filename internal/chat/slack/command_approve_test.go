package slack

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

func TestHandleAutoApprove_AddPersistsPattern(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t, nil)

	workspaceRoot := t.TempDir()
	value, err := json.Marshal(autoApproveSuggestion{
		SessionID: "sess1", WorkspaceRoot: workspaceRoot, Command: "git push --force",
	})
	require.NoError(t, err)

	d.Dispatch(ctx, interactionFor("auto_approve_add", string(value)))

	data, err := os.ReadFile(filepath.Join(workspaceRoot, ".intercom", "settings.json"))
	require.NoError(t, err)

	var doc models.WorkspacePolicy
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.AutoApproveCommands, 1)
	assert.Contains(t, doc.AutoApproveCommands[0], "git")
	assert.Contains(t, doc.AutoApproveCommands[0], "push")
}

func TestHandleAutoApprove_DismissDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t, nil)

	workspaceRoot := t.TempDir()
	value, err := json.Marshal(autoApproveSuggestion{
		SessionID: "sess1", WorkspaceRoot: workspaceRoot, Command: "git push --force",
	})
	require.NoError(t, err)

	d.Dispatch(ctx, interactionFor("auto_approve_dismiss", string(value)))

	_, err = os.Stat(filepath.Join(workspaceRoot, ".intercom", "settings.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandleAutoApprove_MalformedValueIsIgnored(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDispatcher(t, nil)

	d.Dispatch(ctx, interactionFor("auto_approve_add", "not-json"))
}
