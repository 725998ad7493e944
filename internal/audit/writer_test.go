package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

func TestWriter_Log_WritesJSONLWithTodaysFileName(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	sessionID := "s1"
	toolName := "ask_approval"
	require.NoError(t, w.Log(models.AuditRecord{
		SessionID: &sessionID,
		EventType: models.AuditToolCall,
		ToolName:  &toolName,
	}))

	expectedName := "audit-" + time.Now().UTC().Format("2006-01-02") + ".jsonl"
	path := filepath.Join(dir, expectedName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	require.True(t, scanner.Scan())
	var decoded models.AuditRecord
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
	assert.Equal(t, models.AuditToolCall, decoded.EventType)
	require.NotNil(t, decoded.SessionID)
	assert.Equal(t, "s1", *decoded.SessionID)
	require.NotNil(t, decoded.ToolName)
	assert.Equal(t, "ask_approval", *decoded.ToolName)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestWriter_Log_AppendsMultipleRecordsOnOneLineEach(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Log(models.AuditRecord{EventType: models.AuditSessionStart}))
	require.NoError(t, w.Log(models.AuditRecord{EventType: models.AuditSessionTerminate}))

	expectedName := "audit-" + time.Now().UTC().Format("2006-01-02") + ".jsonl"
	data, err := os.ReadFile(filepath.Join(dir, expectedName))
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)
}

func TestWriter_Close_NoErrorWhenNeverWritten(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}
