package models

// FilePatterns holds glob patterns governing auto-approval of file
// reads and writes.
type FilePatterns struct {
	Write []string `json:"write"`
	Read  []string `json:"read"`
}

// WorkspacePolicy is the auto-approve configuration loaded from
// `<workspace>/.intercom/settings.json`. It is in-memory only — never
// persisted to a Persistence Repository.
type WorkspacePolicy struct {
	Enabled                bool         `json:"enabled"`
	AutoApproveCommands    []string     `json:"auto_approve_commands"`
	Tools                  []string     `json:"tools"`
	FilePatterns           FilePatterns `json:"file_patterns"`
	RiskLevelThreshold     RiskLevel    `json:"risk_level_threshold"`
	LogAutoApproved        bool         `json:"log_auto_approved"`
	SummaryIntervalSeconds uint64       `json:"summary_interval_seconds"`
}

// DefaultWorkspacePolicy returns the policy applied when a workspace
// carries no settings file.
func DefaultWorkspacePolicy() WorkspacePolicy {
	return WorkspacePolicy{
		Enabled:                false,
		RiskLevelThreshold:     RiskLow,
		SummaryIntervalSeconds: 300,
	}
}
