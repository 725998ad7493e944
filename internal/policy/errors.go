package policy

import "fmt"

// RuleError represents an invalid auto-approve rule definition, such
// as an unparseable command regex.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule error: %s", e.Message)
}
