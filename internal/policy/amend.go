package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// SettingsFile is the workspace-relative path to the policy document,
// per the spec's `<workspace>/.intercom/settings.json` layout.
const SettingsFile = ".intercom/settings.json"

// DerivePrefixPattern builds a full-line regex that matches the given
// command token prefix followed by arbitrary arguments, suitable for
// persisting into `auto_approve_commands` after an operator approves
// a terminal-command gate suggestion.
func DerivePrefixPattern(prefix []string) (string, error) {
	if len(prefix) == 0 {
		return "", &RuleError{Message: "prefix must not be empty"}
	}
	parts := make([]string, len(prefix))
	for i, p := range prefix {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, `\s+`) + `(\s.*)?$`, nil
}

// AppendAutoApproveCommand persists a derived command regex into the
// workspace settings file's `auto_approve_commands` list, creating the
// file and its parent directory if needed. Duplicate patterns are not
// appended twice.
func AppendAutoApproveCommand(workspaceRoot string, prefix []string) error {
	pattern, err := DerivePrefixPattern(prefix)
	if err != nil {
		return err
	}

	settingsPath := filepath.Join(workspaceRoot, SettingsFile)
	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	doc, err := loadOrDefault(settingsPath)
	if err != nil {
		return err
	}

	for _, existing := range doc.AutoApproveCommands {
		if existing == pattern {
			return nil
		}
	}
	doc.AutoApproveCommands = append(doc.AutoApproveCommands, pattern)

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(settingsPath, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

func loadOrDefault(settingsPath string) (models.WorkspacePolicy, error) {
	raw, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultWorkspacePolicy(), nil
		}
		return models.WorkspacePolicy{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	var doc models.WorkspacePolicy
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.WorkspacePolicy{}, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return doc, nil
}
