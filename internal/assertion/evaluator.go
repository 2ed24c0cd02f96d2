package assertion

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/y0f/checkin/internal/transport"
)

// Evaluate classifies snap against c. A snapshot without a response never
// matches. Otherwise the first configured rule decides alone, in the order
// pattern, keyword, JSON path; with none configured any 2xx status matches.
// Evaluate has no side effects.
func Evaluate(snap *transport.Snapshot, c Criteria) Result {
	if snap == nil {
		return Result{Rule: RuleTransport, Reason: "no response"}
	}
	if snap.Err != nil {
		return Result{Rule: RuleTransport, Reason: snap.Err.Error()}
	}

	switch {
	case c.Pattern != nil:
		return evalPattern(c, snap.Body)
	case c.Keyword != "":
		return evalKeyword(c, snap.Body)
	case c.JSONPath != "":
		return evalJSONPath(c, snap.Body)
	default:
		return evalStatus(snap.StatusCode)
	}
}

// Err returns nil for a match and a *Mismatch for a received but rejected
// response. Transport failures are reported by the snapshot itself.
func (r Result) Err(snap *transport.Snapshot) error {
	if r.Match || snap == nil || snap.Err != nil {
		return nil
	}
	return &Mismatch{StatusCode: snap.StatusCode, Rule: r.Rule, Reason: r.Reason}
}

func evalPattern(c Criteria, body string) Result {
	if c.Pattern.MatchString(body) {
		return Result{Match: true, Rule: RulePattern, Reason: fmt.Sprintf("body matches pattern %q", truncate(c.Pattern.String(), 50))}
	}
	return Result{Rule: RulePattern, Reason: fmt.Sprintf("body does not match pattern %q", truncate(c.Pattern.String(), 50))}
}

func evalKeyword(c Criteria, body string) Result {
	if strings.Contains(body, c.Keyword) {
		return Result{Match: true, Rule: RuleKeyword, Reason: fmt.Sprintf("body contains %q", truncate(c.Keyword, 50))}
	}
	return Result{Rule: RuleKeyword, Reason: fmt.Sprintf("body does not contain %q", truncate(c.Keyword, 50))}
}

func evalJSONPath(c Criteria, body string) Result {
	if !gjson.Valid(body) {
		return Result{Rule: RuleJSONPath, Reason: "body is not valid JSON"}
	}
	v := gjson.Get(body, c.JSONPath)
	if !v.Exists() {
		return Result{Rule: RuleJSONPath, Reason: fmt.Sprintf("%s does not exist", c.JSONPath)}
	}
	if truthy(v) {
		return Result{Match: true, Rule: RuleJSONPath, Reason: fmt.Sprintf("%s is %s", c.JSONPath, truncate(v.Raw, 50))}
	}
	return Result{Rule: RuleJSONPath, Reason: fmt.Sprintf("%s is %s", c.JSONPath, truncate(v.Raw, 50))}
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Float() != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1", "ok", "success":
			return true
		}
	}
	return false
}

func evalStatus(code int) Result {
	if code >= 200 && code < 300 {
		return Result{Match: true, Rule: RuleStatus, Reason: fmt.Sprintf("status %d is 2xx", code)}
	}
	return Result{Rule: RuleStatus, Reason: fmt.Sprintf("status %d is not 2xx", code)}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
