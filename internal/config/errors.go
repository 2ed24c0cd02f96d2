package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a missing or malformed configuration value. A run that
// produces one aborts before any network attempt.
type ConfigError struct {
	Category string // "missing" or "invalid"
	Field    string // environment key, e.g. CHECKIN_URL
	Message  string
	Err      error
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, "("+e.Err.Error()+")")
	}
	return strings.Join(parts, " ")
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Missing returns a ConfigError for a required key that has no value.
func Missing(field string) *ConfigError {
	return &ConfigError{Category: "missing", Field: field, Message: "is required"}
}

// Invalid returns a ConfigError for a value that could not be parsed.
func Invalid(field string, format string, args ...any) *ConfigError {
	return &ConfigError{Category: "invalid", Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
