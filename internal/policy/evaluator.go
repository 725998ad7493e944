package policy

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/models"
	"github.com/softwaresalt/agent-intercom/internal/policy/command_safety"
)

// Context carries the optional per-call metadata a tool handler
// supplies alongside a check_auto_approve request: the target file
// path (for file-pattern rules), the request's risk level (for the
// risk-threshold gate), and the tokenized command line (for the
// terminal-command gate's command_safety heuristics).
type Context struct {
	FilePath      *string
	RiskLevel     *models.RiskLevel
	CommandTokens []string
}

// Result is the outcome of evaluating one tool invocation against a
// workspace policy.
type Result struct {
	AutoApproved bool
	MatchedRule  *string
}

var riskSeverity = map[models.RiskLevel]int{
	models.RiskLow:      0,
	models.RiskHigh:     1,
	models.RiskCritical: 2,
}

// Evaluator checks whether a tool invocation bypasses operator
// approval under a workspace's auto-approve policy, in the fixed
// evaluation order: disabled, command_safety heuristics (only when
// CommandTokens are supplied), risk threshold, command regex, tool
// name, file pattern, default deny.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator builds a policy Evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Check evaluates toolName against policy, given the optional context.
func (e *Evaluator) Check(toolName string, ctx *Context, policy models.WorkspacePolicy) Result {
	if !policy.Enabled {
		return deny()
	}

	// Heuristic safety net ahead of the configured rules: a command
	// recognized as destructive is never auto-approved regardless of
	// risk threshold or a matching auto_approve_commands pattern, and
	// one recognized as read-only bypasses the rest of the evaluation
	// unless the request is critical-risk.
	if ctx != nil && len(ctx.CommandTokens) > 0 {
		if command_safety.CommandMightBeDangerous(ctx.CommandTokens) {
			return deny()
		}
		if command_safety.IsKnownSafeCommand(ctx.CommandTokens) &&
			(ctx.RiskLevel == nil || *ctx.RiskLevel != models.RiskCritical) {
			return approve("command_safety:known_safe")
		}
	}

	if ctx != nil && ctx.RiskLevel != nil {
		if !riskWithinThreshold(*ctx.RiskLevel, policy.RiskLevelThreshold) {
			return deny()
		}
	}

	if rule, ok := matchCommand(toolName, policy.AutoApproveCommands); ok {
		return approve(rule)
	}

	if rule, ok := matchTool(toolName, policy.Tools); ok {
		return approve(rule)
	}

	if ctx != nil && ctx.FilePath != nil {
		if rule, ok := matchFilePattern(toolName, *ctx.FilePath, policy.FilePatterns); ok {
			return approve(rule)
		}
	}

	return deny()
}

// riskWithinThreshold reports whether requestRisk is at or below
// threshold in the low < high < critical severity order. Critical
// requests are never auto-approved, regardless of threshold.
func riskWithinThreshold(requestRisk, threshold models.RiskLevel) bool {
	if requestRisk == models.RiskCritical {
		return false
	}
	reqSeverity, reqKnown := riskSeverity[requestRisk]
	thrSeverity, thrKnown := riskSeverity[threshold]
	if !reqKnown || !thrKnown {
		return false
	}
	return reqSeverity <= thrSeverity
}

func matchCommand(toolName string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		re, err := compileCommandPattern(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(toolName) {
			return "command:" + pattern, true
		}
	}
	return "", false
}

func matchTool(toolName string, tools []string) (string, bool) {
	for _, t := range tools {
		if t == toolName {
			return "tool:" + toolName, true
		}
	}
	return "", false
}

// matchFilePattern consults the write pattern set for tool names that
// contain "write" or equal the diff-accept tool, the read set for
// names containing "read", and both (write first) otherwise.
func matchFilePattern(toolName, filePath string, patterns models.FilePatterns) (string, bool) {
	switch {
	case strings.Contains(toolName, "write") || toolName == "accept_diff":
		return globMatch(patterns.Write, filePath, "write")
	case strings.Contains(toolName, "read"):
		return globMatch(patterns.Read, filePath, "read")
	default:
		if rule, ok := globMatch(patterns.Write, filePath, "write"); ok {
			return rule, true
		}
		return globMatch(patterns.Read, filePath, "read")
	}
}

func globMatch(patterns []string, filePath, kind string) (string, bool) {
	for _, pattern := range patterns {
		// No separator argument: '*' (and so '**') matches across '/'
		// boundaries, which is what shell-style "src/**/*.go" authors expect.
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		if g.Match(filePath) {
			return "file_pattern:" + kind + ":" + pattern, true
		}
	}
	return "", false
}

// compileCommandPattern anchors pattern to the full command line.
// auto_approve_commands entries are meant to match a whole invocation
// (per the derived patterns amend.go writes), not an arbitrary
// substring of one; the outer non-capturing group keeps top-level
// alternations (e.g. "foo|bar") from having their precedence changed
// by the anchors.
func compileCommandPattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

func deny() Result {
	return Result{AutoApproved: false}
}

func approve(rule string) Result {
	r := rule
	return Result{AutoApproved: true, MatchedRule: &r}
}
