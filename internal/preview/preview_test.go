package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBody(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"disabled", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"empty", "", 10, ""},
		{"plain under limit", "hello", 10, "hello"},
		{"plain truncated", "hello world", 5, "hello\n...[truncated, 11 chars total, limit 5]"},
		{"json indented", `{"ret":1,"msg":"ok"}`, 100, "{\n  \"ret\": 1,\n  \"msg\": \"ok\"\n}"},
		{"multibyte counted as characters", "签到成功啦", 4, "签到成功\n...[truncated, 5 chars total, limit 4]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Body(tt.text, tt.limit))
		})
	}
}

func TestBodyKeepsNonASCIIInJSON(t *testing.T) {
	got := Body(`{"msg":"签到成功"}`, 500)
	assert.Contains(t, got, "签到成功")
	assert.True(t, strings.HasPrefix(got, "{\n"))
}

func TestSecret(t *testing.T) {
	assert.Equal(t, "", Secret(""))
	assert.Equal(t, "*****", Secret("short"))
	assert.Equal(t, "************", Secret("exactly12chr"))
	assert.Equal(t, "sessio***abcdef", Secret("  session=0123456789abcdef "))
}
