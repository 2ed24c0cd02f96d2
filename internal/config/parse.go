package config

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// Header is a single request header as written in the configuration.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list with case-insensitive names. Methods
// that change the list return a copy.
type Headers []Header

func (h Headers) index(name string) int {
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the value for name and whether it was present.
func (h Headers) Get(name string) (string, bool) {
	if i := h.index(name); i >= 0 {
		return h[i].Value, true
	}
	return "", false
}

func (h Headers) Has(name string) bool { return h.index(name) >= 0 }

// Set replaces the value of an existing header in place, or appends it.
func (h Headers) Set(name, value string) Headers {
	out := append(Headers(nil), h...)
	if i := out.index(name); i >= 0 {
		out[i].Value = value
		return out
	}
	return append(out, Header{Name: name, Value: value})
}

// Without returns the list minus every header called name.
func (h Headers) Without(name string) Headers {
	var out Headers
	for _, hd := range h {
		if !strings.EqualFold(hd.Name, name) {
			out = append(out, hd)
		}
	}
	return out
}

func (h Headers) Names() []string {
	names := make([]string, 0, len(h))
	for _, hd := range h {
		names = append(names, hd.Name)
	}
	return names
}

var pairSeparator = regexp.MustCompile(`[;\r\n]+`)

// ParseHeaders reads CHECKIN_HEADERS. A JSON object is tried first, then a
// list of key=value or key: value pairs separated by ';' or newlines. When
// no pair can be found the whole value is taken as one "name: value" header.
func ParseHeaders(raw string) (Headers, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	if h, ok := parseJSONHeaders(s); ok {
		return h, validateHeaders(h)
	}

	var out Headers
	for _, pair := range pairSeparator.Split(s, -1) {
		pair = strings.TrimSpace(pair)
		i := strings.IndexAny(pair, "=:")
		if i <= 0 {
			continue
		}
		name := strings.TrimSpace(pair[:i])
		if name == "" {
			continue
		}
		out = out.Set(name, strings.TrimSpace(pair[i+1:]))
	}
	if len(out) > 0 {
		return out, validateHeaders(out)
	}

	i := strings.Index(s, ":")
	if i < 0 {
		return nil, Invalid(KeyHeaders, "must be a JSON object or key=value pairs separated by ';' or newlines")
	}
	name := strings.TrimSpace(s[:i])
	if name == "" {
		return nil, Invalid(KeyHeaders, "header name is empty")
	}
	out = Headers{{Name: name, Value: strings.TrimSpace(s[i+1:])}}
	return out, validateHeaders(out)
}

func parseJSONHeaders(s string) (Headers, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}

	var out Headers
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := kt.(string)
		if !ok {
			return nil, false
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		out = out.Set(key, jsonScalar(v))
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return out, true
}

func jsonScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func validateHeaders(h Headers) error {
	for _, hd := range h {
		if !httpguts.ValidHeaderFieldName(hd.Name) {
			return Invalid(KeyHeaders, "invalid header name %q", hd.Name)
		}
		if !httpguts.ValidHeaderFieldValue(hd.Value) {
			return Invalid(KeyHeaders, "invalid value for header %q", hd.Name)
		}
	}
	return nil
}

// Body is the configured request payload. A zero Body means no payload.
type Body struct {
	Raw  []byte
	JSON bool
}

func (b Body) Empty() bool { return len(b.Raw) == 0 }

// ParseBody reads CHECKIN_BODY. JSON objects and arrays are compacted and
// flagged as JSON; anything else is sent verbatim.
func ParseBody(raw string) Body {
	t := strings.TrimSpace(raw)
	if t == "" {
		return Body{}
	}
	if t[0] == '{' || t[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(t)); err == nil {
			return Body{Raw: buf.Bytes(), JSON: true}
		}
	}
	return Body{Raw: []byte(raw)}
}

// ParseBool accepts true/false, 1/0, yes/no, y/n and on/off in any case.
// An empty value yields def.
func ParseBool(key, raw string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def, nil
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, Invalid(key, "%q is not a boolean (use true/false, 1/0, yes/no)", raw)
	}
}

// ParseSeconds reads a positive timeout given as seconds ("15", "2.5") or as
// a Go duration ("1m30s").
func ParseSeconds(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDuration(key, raw, def)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, Invalid(key, "must be positive")
	}
	return d, nil
}

// ParseDelay is ParseSeconds but allows zero.
func ParseDelay(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDuration(key, raw, def)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, Invalid(key, "must not be negative")
	}
	return d, nil
}

func parseDuration(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, Invalid(key, "%q is not a number of seconds or a duration", raw)
	}
	return d, nil
}

// ParseInt reads an integer within [lo, hi].
func ParseInt(key, raw string, def, lo, hi int) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, Invalid(key, "%q is not an integer", raw)
	}
	if n < lo {
		return 0, Invalid(key, "must be at least %d", lo)
	}
	if n > hi {
		return 0, Invalid(key, "must be at most %d", hi)
	}
	return n, nil
}

// ParsePattern compiles CHECKIN_SUCCESS_PATTERN. Empty means no pattern.
func ParsePattern(raw string) (*regexp.Regexp, error) {
	if raw == "" {
		return nil, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, &ConfigError{Category: "invalid", Field: KeySuccessPattern, Message: "is not a valid regular expression", Err: err}
	}
	return re, nil
}
