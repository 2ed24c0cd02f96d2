package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

// Option keys. They double as environment variable names.
const (
	KeyConfigFile     = "CHECKIN_CONFIG"
	KeyURL            = "CHECKIN_URL"
	KeyMethod         = "CHECKIN_METHOD"
	KeyHeaders        = "CHECKIN_HEADERS"
	KeyBody           = "CHECKIN_BODY"
	KeySuccessKeyword = "CHECKIN_SUCCESS_KEYWORD"
	KeySuccessPattern = "CHECKIN_SUCCESS_PATTERN"
	KeySuccessJSON    = "CHECKIN_SUCCESS_JSON_PATH"
	KeyTimeout        = "CHECKIN_TIMEOUT"
	KeyRetry          = "CHECKIN_RETRY"
	KeyRetryDelay     = "CHECKIN_RETRY_DELAY"
	KeyVerify         = "CHECKIN_VERIFY"
	KeyProxy          = "CHECKIN_PROXY"
	KeyHTTPProxy      = "HTTP_PROXY"
	KeyHTTPSProxy     = "HTTPS_PROXY"
	KeyNoProxy        = "NO_PROXY"
	KeyTransport      = "CHECKIN_TRANSPORT"
	KeyAllowPrivate   = "CHECKIN_ALLOW_PRIVATE"
	KeyUserAgent      = "CHECKIN_USER_AGENT"
	KeyWarmupURL      = "CHECKIN_WARMUP_URL"
	KeyLogBytes       = "CHECKIN_LOG_BYTES"
	KeyName           = "CHECKIN_NAME"
	KeyLogLevel       = "CHECKIN_LOG_LEVEL"
	KeyLogFormat      = "CHECKIN_LOG_FORMAT"
	KeyPushPlusToken  = "PUSHPLUS_TOKEN"
	KeyPushPlusURL    = "PUSHPLUS_ENDPOINT"
	KeyBarkURL        = "BARK_URL"
	KeyNotifyTimeout  = "CHECKIN_NOTIFY_TIMEOUT"
	KeyNotifyRetry    = "CHECKIN_NOTIFY_RETRY"
)

// Upper bounds for integer settings.
const (
	MaxRetry       = 100
	MaxLogBytes    = 1 << 20
	MaxNotifyRetry = 10
)

// Transport modes.
const (
	TransportAuto  = "auto"
	TransportHTTP2 = "http2"
	TransportHTTP1 = "http1"
)

// Config is the typed, read-only configuration of one run.
type Config struct {
	URL     string
	Method  string
	Headers Headers
	Body    Body

	SuccessKeyword  string
	SuccessPattern  *regexp.Regexp
	SuccessJSONPath string

	Timeout    time.Duration
	Retry      int
	RetryDelay time.Duration
	VerifyTLS  bool

	Proxy        ProxyConfig
	Transport    string
	AllowPrivate bool
	UserAgent    string
	WarmupURL    string

	LogBytes int
	Name     string

	Notify  NotifyConfig
	Logging LoggingConfig
}

// ProxyConfig holds proxy URLs as found in the environment. They are passed
// through to the transport without being dialed.
type ProxyConfig struct {
	All     string // CHECKIN_PROXY, overrides HTTP and HTTPS
	HTTP    string
	HTTPS   string
	NoProxy string
}

func (p ProxyConfig) Enabled() bool {
	return p.All != "" || p.HTTP != "" || p.HTTPS != ""
}

type NotifyConfig struct {
	PushPlusToken string
	PushPlusURL   string // empty means the public API
	BarkURL       string
	Timeout       time.Duration
	Retry         int
}

type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

func Defaults() *Config {
	return &Config{
		Method:       "POST",
		Timeout:      15 * time.Second,
		Retry:        1,
		VerifyTLS:    true,
		Transport:    TransportAuto,
		AllowPrivate: true,
		LogBytes:     500,
		Name:         "Check-in",
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
			Retry:   1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadOptions selects where configuration comes from.
type LoadOptions struct {
	// Path of an optional YAML file. Falls back to CHECKIN_CONFIG.
	Path string
	// Source overrides the environment entirely when set.
	Source *Source
}

// Load builds the run configuration once. Every field is parsed here; the
// rest of the program only sees typed values.
func Load(opts LoadOptions) (*Config, error) {
	src := opts.Source
	if src == nil {
		path := opts.Path
		if path == "" {
			path = strings.TrimSpace(os.Getenv(KeyConfigFile))
		}
		s, err := NewSource(path)
		if err != nil {
			return nil, &ConfigError{Category: "invalid", Field: KeyConfigFile, Message: "could not be loaded", Err: err}
		}
		src = s
	}
	return FromSource(src)
}

// FromSource parses every option out of src.
func FromSource(src *Source) (*Config, error) {
	cfg := Defaults()
	var err error

	cfg.URL = src.String(KeyURL)
	if m := src.String(KeyMethod); m != "" {
		cfg.Method = strings.ToUpper(m)
	}

	if cfg.Headers, err = ParseHeaders(src.Raw(KeyHeaders)); err != nil {
		return nil, err
	}
	cfg.Body = ParseBody(src.Raw(KeyBody))

	cfg.SuccessKeyword = src.Raw(KeySuccessKeyword)
	if cfg.SuccessPattern, err = ParsePattern(src.Raw(KeySuccessPattern)); err != nil {
		return nil, err
	}
	cfg.SuccessJSONPath = src.String(KeySuccessJSON)

	if cfg.Timeout, err = ParseSeconds(KeyTimeout, src.String(KeyTimeout), cfg.Timeout); err != nil {
		return nil, err
	}
	if cfg.Retry, err = ParseInt(KeyRetry, src.String(KeyRetry), cfg.Retry, 0, MaxRetry); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = ParseDelay(KeyRetryDelay, src.String(KeyRetryDelay), cfg.RetryDelay); err != nil {
		return nil, err
	}
	if cfg.VerifyTLS, err = ParseBool(KeyVerify, src.String(KeyVerify), cfg.VerifyTLS); err != nil {
		return nil, err
	}

	cfg.Proxy = ProxyConfig{
		All:     src.String(KeyProxy),
		HTTP:    src.String(KeyHTTPProxy),
		HTTPS:   src.String(KeyHTTPSProxy),
		NoProxy: src.String(KeyNoProxy),
	}
	if t := src.String(KeyTransport); t != "" {
		cfg.Transport = strings.ToLower(t)
	}
	if cfg.AllowPrivate, err = ParseBool(KeyAllowPrivate, src.String(KeyAllowPrivate), cfg.AllowPrivate); err != nil {
		return nil, err
	}
	cfg.UserAgent = src.String(KeyUserAgent)
	cfg.WarmupURL = src.String(KeyWarmupURL)

	if cfg.LogBytes, err = ParseInt(KeyLogBytes, src.String(KeyLogBytes), cfg.LogBytes, 0, MaxLogBytes); err != nil {
		return nil, err
	}
	if n := src.String(KeyName); n != "" {
		cfg.Name = n
	}

	cfg.Notify.PushPlusToken = src.String(KeyPushPlusToken)
	cfg.Notify.PushPlusURL = src.String(KeyPushPlusURL)
	cfg.Notify.BarkURL = src.String(KeyBarkURL)
	if cfg.Notify.Timeout, err = ParseSeconds(KeyNotifyTimeout, src.String(KeyNotifyTimeout), cfg.Notify.Timeout); err != nil {
		return nil, err
	}
	if cfg.Notify.Retry, err = ParseInt(KeyNotifyRetry, src.String(KeyNotifyRetry), cfg.Notify.Retry, 0, MaxNotifyRetry); err != nil {
		return nil, err
	}

	if l := src.String(KeyLogLevel); l != "" {
		cfg.Logging.Level = strings.ToLower(l)
	}
	if f := src.String(KeyLogFormat); f != "" {
		cfg.Logging.Format = strings.ToLower(f)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the per-field parsers can't.
// The target URL itself is checked when the request is built.
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateProxies(); err != nil {
		return err
	}
	if c.WarmupURL != "" && !isHTTPURL(c.WarmupURL) {
		return Invalid(KeyWarmupURL, "must be an absolute http(s) URL")
	}
	if c.Notify.PushPlusURL != "" && !isHTTPURL(c.Notify.PushPlusURL) {
		return Invalid(KeyPushPlusURL, "must be an absolute http(s) URL")
	}
	if c.Notify.BarkURL != "" && !isHTTPURL(c.Notify.BarkURL) {
		return Invalid(KeyBarkURL, "must be an absolute http(s) URL")
	}
	if err := validateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return Invalid(KeyLogFormat, "must be one of: text, json")
	}
	return nil
}

func (c *Config) validateTransport() error {
	switch c.Transport {
	case TransportAuto, TransportHTTP2, TransportHTTP1:
		return nil
	default:
		return Invalid(KeyTransport, "must be one of: auto, http2, http1")
	}
}

func (c *Config) validateProxies() error {
	for key, raw := range map[string]string{
		KeyProxy:      c.Proxy.All,
		KeyHTTPProxy:  c.Proxy.HTTP,
		KeyHTTPSProxy: c.Proxy.HTTPS,
	} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return &ConfigError{Category: "invalid", Field: key, Message: "is not a URL", Err: err}
		}
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return Invalid(KeyLogLevel, "must be one of: debug, info, warn, error")
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SinkNames lists the notification sinks that have credentials.
func (c *Config) SinkNames() []string {
	var names []string
	if c.Notify.PushPlusToken != "" {
		names = append(names, "pushplus")
	}
	if c.Notify.BarkURL != "" {
		names = append(names, "bark")
	}
	return names
}

// String is a one-line summary safe to log; it never includes secrets.
func (c *Config) String() string {
	return fmt.Sprintf("method=%s timeout=%s retry=%d verify_tls=%t transport=%s",
		c.Method, c.Timeout, c.Retry, c.VerifyTLS, c.Transport)
}
