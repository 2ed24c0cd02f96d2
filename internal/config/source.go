package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Source resolves raw option values. Environment variables win over the
// optional YAML file, which wins over built-in defaults.
type Source struct {
	v *viper.Viper
}

// NewSource reads the YAML file at path (if any) and layers the process
// environment on top of it.
func NewSource(path string) (*Source, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for k, val := range values {
			v.SetDefault(k, val)
		}
	}

	return &Source{v: v}, nil
}

// NewMapSource builds a Source from fixed values only. Used by tests and
// by callers that already hold their configuration in memory.
func NewMapSource(values map[string]string) *Source {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return &Source{v: v}
}

// String returns the trimmed value for key, or "" when unset.
func (s *Source) String(key string) string {
	return strings.TrimSpace(s.v.GetString(key))
}

// Raw returns the value for key without trimming. Bodies keep their
// surrounding whitespace.
func (s *Source) Raw(key string) string {
	return s.v.GetString(key)
}

// Lowercase proxy variables are honored the way curl and Go's net/http do.
var envAliases = map[string][]string{
	KeyHTTPProxy:  {"HTTP_PROXY", "http_proxy"},
	KeyHTTPSProxy: {"HTTPS_PROXY", "https_proxy"},
	KeyNoProxy:    {"NO_PROXY", "no_proxy"},
}

// readFile loads a flat YAML mapping of option keys. Nested values (for
// example a headers mapping) are re-encoded as JSON strings so they flow
// through the same parsers as environment values.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch x := v.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = x
		case map[string]any, []any:
			b, err := json.Marshal(x)
			if err != nil {
				return nil, fmt.Errorf("parse config: %s: %w", key, err)
			}
			out[key] = string(b)
		default:
			out[key] = fmt.Sprint(x)
		}
	}
	return out, nil
}
