// Package request turns a run configuration into the immutable request
// descriptor that every attempt sends.
package request

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/y0f/checkin/internal/config"
)

// Descriptor is everything the transport needs to send one request. It is
// built once per run and never modified.
type Descriptor struct {
	Method    string `validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	URL       string `validate:"required,http_url"`
	Headers   config.Headers
	Body      []byte
	Timeout   time.Duration `validate:"gt=0"`
	VerifyTLS bool
	Proxy     config.ProxyConfig
}

// Header returns the value of the named header, case-insensitively.
func (d *Descriptor) Header(name string) string {
	v, _ := d.Headers.Get(name)
	return v
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Build assembles the check-in request. A missing or malformed URL, or an
// unsupported method, yields a *config.ConfigError.
func Build(cfg *config.Config) (*Descriptor, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, config.Missing(config.KeyURL)
	}

	headers := cfg.Headers
	if cfg.Body.JSON && !headers.Has("Content-Type") {
		headers = headers.Set("Content-Type", "application/json")
	}
	if cfg.UserAgent != "" && !headers.Has("User-Agent") {
		headers = headers.Set("User-Agent", cfg.UserAgent)
	}

	d := &Descriptor{
		Method:    cfg.Method,
		URL:       cfg.URL,
		Headers:   headers,
		Timeout:   cfg.Timeout,
		VerifyTLS: cfg.VerifyTLS,
		Proxy:     cfg.Proxy,
	}
	if !cfg.Body.Empty() {
		d.Body = append([]byte(nil), cfg.Body.Raw...)
	}

	if err := check(d); err != nil {
		return nil, err
	}
	return d, nil
}

// BuildWarmup returns the optional GET sent once before the first attempt to
// prime the session, or nil when no warm-up URL is configured. The Cookie
// header is dropped so the warm-up page can set fresh cookies.
func BuildWarmup(cfg *config.Config) (*Descriptor, error) {
	if cfg.WarmupURL == "" {
		return nil, nil
	}

	headers := cfg.Headers.Without("Cookie")
	if cfg.UserAgent != "" && !headers.Has("User-Agent") {
		headers = headers.Set("User-Agent", cfg.UserAgent)
	}

	d := &Descriptor{
		Method:    "GET",
		URL:       cfg.WarmupURL,
		Headers:   headers,
		Timeout:   cfg.Timeout,
		VerifyTLS: cfg.VerifyTLS,
		Proxy:     cfg.Proxy,
	}
	if err := check(d); err != nil {
		var ce *config.ConfigError
		if errors.As(err, &ce) && ce.Field == config.KeyURL {
			ce.Field = config.KeyWarmupURL
		}
		return nil, err
	}
	return d, nil
}

func check(d *Descriptor) error {
	err := structValidator().Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &config.ConfigError{Category: "invalid", Message: "request is invalid", Err: err}
	}

	fe := verrs[0]
	switch fe.Field() {
	case "URL":
		if fe.Tag() == "required" {
			return config.Missing(config.KeyURL)
		}
		return config.Invalid(config.KeyURL, "%q is not an absolute http(s) URL", d.URL)
	case "Method":
		return config.Invalid(config.KeyMethod, "%q is not a supported method", d.Method)
	case "Timeout":
		return config.Invalid(config.KeyTimeout, "must be positive")
	default:
		return config.Invalid(fe.Field(), "failed %s validation", fe.Tag())
	}
}
