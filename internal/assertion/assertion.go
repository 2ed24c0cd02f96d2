// Package assertion decides whether a check-in response counts as a success.
package assertion

import (
	"fmt"
	"regexp"

	"github.com/y0f/checkin/internal/config"
)

// Rule names the criterion that produced a Result.
type Rule string

const (
	RuleTransport Rule = "transport"
	RulePattern   Rule = "pattern"
	RuleKeyword   Rule = "keyword"
	RuleJSONPath  Rule = "json_path"
	RuleStatus    Rule = "status"
)

// Criteria are the configured success rules. At most one of them decides a
// given response; see Evaluate for the order.
type Criteria struct {
	Pattern  *regexp.Regexp
	Keyword  string
	JSONPath string
}

// CriteriaFrom extracts the success rules from a run configuration.
func CriteriaFrom(cfg *config.Config) Criteria {
	return Criteria{
		Pattern:  cfg.SuccessPattern,
		Keyword:  cfg.SuccessKeyword,
		JSONPath: cfg.SuccessJSONPath,
	}
}

// Describe is a short human-readable summary used in startup logs.
func (c Criteria) Describe() string {
	switch {
	case c.Pattern != nil:
		return fmt.Sprintf("pattern %q", c.Pattern.String())
	case c.Keyword != "":
		return fmt.Sprintf("keyword %q", c.Keyword)
	case c.JSONPath != "":
		return fmt.Sprintf("json path %q", c.JSONPath)
	default:
		return "2xx status"
	}
}

// Result holds the verdict for one response.
type Result struct {
	Match  bool
	Rule   Rule
	Reason string
}

// Mismatch is the error form of a non-matching Result for a response that
// was received.
type Mismatch struct {
	StatusCode int
	Rule       Rule
	Reason     string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("unmatched response: status %d, reason %s", m.StatusCode, m.Reason)
}
