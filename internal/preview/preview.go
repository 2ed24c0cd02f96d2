// Package preview renders response bodies and secrets for log output.
package preview

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Body returns at most limit characters of text for logging. JSON bodies are
// indented first. A limit of zero or less disables the preview.
func Body(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}

	out := text
	if gjson.Valid(text) {
		out = strings.TrimRight(string(pretty.Pretty([]byte(text))), "\n")
	}

	n := utf8.RuneCountInString(out)
	if n <= limit {
		return out
	}
	runes := []rune(out)
	return string(runes[:limit]) + fmt.Sprintf("\n...[truncated, %d chars total, limit %d]", n, limit)
}

const (
	keepHead = 6
	keepTail = 6
)

// Secret masks all but the first and last few characters of s. Short values
// are masked completely.
func Secret(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= keepHead+keepTail {
		return strings.Repeat("*", len(r))
	}
	return string(r[:keepHead]) + "***" + string(r[len(r)-keepTail:])
}
