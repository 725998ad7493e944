package policy

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

// Load reads and parses `<workspaceRoot>/.intercom/settings.json` into
// a WorkspacePolicy. A missing file, an unreadable file, or malformed
// JSON all degrade to the deny-all default rather than failing the
// caller — policy loading is best-effort and a broken settings file
// must never block the agent, only withhold auto-approval.
func Load(workspaceRoot string, logger *zap.Logger) models.WorkspacePolicy {
	settingsPath := filepath.Join(workspaceRoot, SettingsFile)

	raw, err := os.ReadFile(settingsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read workspace policy file, falling back to deny-all",
				zap.String("path", settingsPath), zap.Error(err))
		}
		return models.DefaultWorkspacePolicy()
	}

	var policy models.WorkspacePolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		logger.Warn("malformed workspace policy file, falling back to deny-all",
			zap.String("path", settingsPath), zap.Error(err))
		return models.DefaultWorkspacePolicy()
	}

	applyDefaults(&policy)
	return policy
}

// applyDefaults fills in fields the JSON document omitted, mirroring
// the per-field serde defaults of the settings.json contract.
func applyDefaults(policy *models.WorkspacePolicy) {
	if policy.RiskLevelThreshold == "" {
		policy.RiskLevelThreshold = models.RiskLow
	}
	if policy.SummaryIntervalSeconds == 0 {
		policy.SummaryIntervalSeconds = 300
	}
}
