package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
)

func TestEvaluator_Check_DisabledDeniesAlways(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{Enabled: false, Tools: []string{"read_file"}}

	result := e.Check("read_file", nil, policy)
	assert.False(t, result.AutoApproved)
	assert.Nil(t, result.MatchedRule)
}

func TestEvaluator_Check_ToolMatch(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{Enabled: true, Tools: []string{"read_file"}}

	result := e.Check("read_file", nil, policy)
	assert.True(t, result.AutoApproved)
	assert.Equal(t, "tool:read_file", *result.MatchedRule)
}

func TestEvaluator_Check_CommandRegexMatch(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled:             true,
		AutoApproveCommands: []string{`^cargo (build|test)(\s.*)?$`},
	}

	result := e.Check("cargo test --all", nil, policy)
	assert.True(t, result.AutoApproved)

	result = e.Check("cargo publish", nil, policy)
	assert.False(t, result.AutoApproved)
}

func TestEvaluator_Check_RiskThreshold(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled:            true,
		Tools:              []string{"apply_patch"},
		RiskLevelThreshold: models.RiskHigh,
	}

	low := models.RiskLow
	high := models.RiskHigh
	critical := models.RiskCritical

	assert.True(t, e.Check("apply_patch", &Context{RiskLevel: &low}, policy).AutoApproved)
	assert.True(t, e.Check("apply_patch", &Context{RiskLevel: &high}, policy).AutoApproved)
	assert.False(t, e.Check("apply_patch", &Context{RiskLevel: &critical}, policy).AutoApproved)
}

func TestEvaluator_Check_CriticalNeverAutoApprovedEvenAtThreshold(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled:            true,
		Tools:              []string{"apply_patch"},
		RiskLevelThreshold: models.RiskCritical,
	}
	critical := models.RiskCritical
	result := e.Check("apply_patch", &Context{RiskLevel: &critical}, policy)
	assert.False(t, result.AutoApproved)
}

func TestEvaluator_Check_FilePatternWrite(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled: true,
		FilePatterns: models.FilePatterns{
			Write: []string{"src/**/*.go"},
		},
	}
	path := "src/internal/foo.go"
	result := e.Check("accept_diff", &Context{FilePath: &path}, policy)
	assert.True(t, result.AutoApproved)
	assert.Equal(t, "file_pattern:write:src/**/*.go", *result.MatchedRule)
}

func TestEvaluator_Check_FilePatternReadToolChecksReadSet(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled: true,
		FilePatterns: models.FilePatterns{
			Write: []string{"src/**/*.go"},
			Read:  []string{"docs/**/*.md"},
		},
	}
	path := "docs/readme.md"
	result := e.Check("read_file", &Context{FilePath: &path}, policy)
	assert.True(t, result.AutoApproved)
	assert.Equal(t, "file_pattern:read:docs/**/*.md", *result.MatchedRule)
}

func TestEvaluator_Check_NoMatchDenies(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{Enabled: true}
	result := e.Check("unknown_tool", nil, policy)
	assert.False(t, result.AutoApproved)
}

func TestEvaluator_Check_CommandRegexDoesNotOverMatchSubstring(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled:             true,
		AutoApproveCommands: []string{"cargo test"},
	}

	// Unanchored, this pattern would match as a substring anywhere in
	// the command line; anchored, it must match the whole line.
	assert.True(t, e.Check("cargo test", nil, policy).AutoApproved)
	assert.False(t, e.Check("rm -rf / && cargo test", nil, policy).AutoApproved)
}

func TestEvaluator_Check_KnownSafeCommandBypassesRiskThreshold(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{Enabled: true, RiskLevelThreshold: models.RiskLow}

	high := models.RiskHigh
	result := e.Check("cat README.md", &Context{
		RiskLevel:     &high,
		CommandTokens: []string{"cat", "README.md"},
	}, policy)
	assert.True(t, result.AutoApproved)
	assert.Equal(t, "command_safety:known_safe", *result.MatchedRule)
}

func TestEvaluator_Check_DangerousCommandOverridesAutoApproveMatch(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	policy := models.WorkspacePolicy{
		Enabled:             true,
		AutoApproveCommands: []string{"git push.*"},
	}

	result := e.Check("git push --force", &Context{
		CommandTokens: []string{"git", "push", "--force"},
	}, policy)
	assert.False(t, result.AutoApproved)
}
