package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "POST", cfg.Method)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Retry)
	assert.True(t, cfg.VerifyTLS)
	assert.Equal(t, TransportAuto, cfg.Transport)
	assert.Equal(t, 500, cfg.LogBytes)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestFromSource(t *testing.T) {
	src := NewMapSource(map[string]string{
		KeyURL:            "https://example.com/api/user/sign_in",
		KeyMethod:         "get",
		KeyHeaders:        "Cookie=abc;User-Agent=x",
		KeyBody:           `{"action": "checkin"}`,
		KeySuccessKeyword: "json",
		KeySuccessPattern: `"success":\s*true`,
		KeyTimeout:        "7.5",
		KeyRetry:          "3",
		KeyRetryDelay:     "2s",
		KeyVerify:         "No",
		KeyProxy:          "socks5://127.0.0.1:1080",
		KeyPushPlusToken:  "tok",
		KeyBarkURL:        "https://api.day.app/KEY",
	})

	cfg, err := FromSource(src)
	require.NoError(t, err)

	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, Headers{{"Cookie", "abc"}, {"User-Agent", "x"}}, cfg.Headers)
	assert.True(t, cfg.Body.JSON)
	assert.Equal(t, `{"action":"checkin"}`, string(cfg.Body.Raw))
	assert.Equal(t, "json", cfg.SuccessKeyword)
	require.NotNil(t, cfg.SuccessPattern)
	assert.Equal(t, 7500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retry)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.False(t, cfg.VerifyTLS)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Proxy.All)
	assert.Equal(t, []string{"pushplus", "bark"}, cfg.SinkNames())
}

func TestFromSourceErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad verify flag", KeyVerify, "maybe"},
		{"bad timeout", KeyTimeout, "soon"},
		{"zero timeout", KeyTimeout, "0"},
		{"negative retry", KeyRetry, "-1"},
		{"bad retry", KeyRetry, "two"},
		{"retry above cap", KeyRetry, "101"},
		{"retry near max int", KeyRetry, "9223372036854775807"},
		{"retry beyond int range", KeyRetry, "99999999999999999999"},
		{"log bytes above cap", KeyLogBytes, "2097152"},
		{"notify retry above cap", KeyNotifyRetry, "11"},
		{"bad pattern", KeySuccessPattern, "(["},
		{"bad headers", KeyHeaders, "justgarbage"},
		{"bad transport", KeyTransport, "carrier-pigeon"},
		{"bad bark url", KeyBarkURL, "day.app/KEY"},
		{"bad pushplus endpoint", KeyPushPlusURL, "ftp://pushplus.example/send"},
		{"bad log level", KeyLogLevel, "trace"},
		{"bad allow private", KeyAllowPrivate, "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSource(NewMapSource(map[string]string{
				KeyURL: "https://example.com",
				tt.key: tt.value,
			}))
			require.Error(t, err)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "expected *ConfigError, got %T", err)
			assert.Equal(t, tt.key, ce.Field)
		})
	}
}

func TestFromSourceLeavesURLToBuilder(t *testing.T) {
	cfg, err := FromSource(NewMapSource(nil))
	require.NoError(t, err)
	assert.Empty(t, cfg.URL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv(KeyURL, "https://example.com/checkin")
	t.Setenv(KeyRetry, "0")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("https_proxy", "http://proxy.local:3128")
	t.Setenv(KeyConfigFile, "")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/checkin", cfg.URL)
	assert.Equal(t, 0, cfg.Retry)
	assert.Equal(t, "http://proxy.local:3128", cfg.Proxy.HTTPS)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkin.yaml")
	content := `
checkin_url: https://example.com/sign
checkin_timeout: 20
checkin_headers:
  Cookie: ${TEST_CHECKIN_COOKIE}
checkin_body:
  action: checkin
checkin_retry: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TEST_CHECKIN_COOKIE", "session=xyz")
	t.Setenv(KeyRetry, "4")

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/sign", cfg.URL)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	v, ok := cfg.Headers.Get("cookie")
	require.True(t, ok)
	assert.Equal(t, "session=xyz", v)
	assert.True(t, cfg.Body.JSON)
	assert.Equal(t, `{"action":"checkin"}`, string(cfg.Body.Raw))
	assert.Equal(t, 4, cfg.Retry, "environment must win over the file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.True(t, strings.Contains(err.Error(), KeyConfigFile))
}

func TestConfigErrorFormat(t *testing.T) {
	err := Missing(KeyURL)
	assert.Equal(t, "config_missing: CHECKIN_URL is required", err.Error())

	wrapped := &ConfigError{Category: "invalid", Field: KeySuccessPattern, Message: "is bad", Err: errors.New("boom")}
	assert.Equal(t, "config_invalid: CHECKIN_SUCCESS_PATTERN is bad (boom)", wrapped.Error())
	assert.ErrorContains(t, errors.Unwrap(wrapped), "boom")
}
