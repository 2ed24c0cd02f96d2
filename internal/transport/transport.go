// Package transport sends a request descriptor once and reports what came
// back. Network and HTTP failures are returned inside the Snapshot, never as
// Go errors, so callers can treat every attempt uniformly.
package transport

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/request"
)

const (
	maxBodyRead         = 1 << 20 // 1MB
	defaultMaxRedirects = 10
)

// Snapshot is the observable result of one attempt. StatusCode and Body are
// only meaningful when Err is nil.
type Snapshot struct {
	StatusCode int
	Body       string
	Proto      string
	Elapsed    time.Duration
	Err        *TransportError
}

// Reached reports whether the attempt got an HTTP response.
func (s *Snapshot) Reached() bool { return s != nil && s.Err == nil }

// Transport executes a descriptor once.
type Transport interface {
	// Name identifies the implementation in logs ("http2" or "http1").
	Name() string
	// Do sends the request. It always returns a non-nil Snapshot.
	Do(ctx context.Context, d *request.Descriptor) *Snapshot
}

// Options apply to every request a transport sends.
type Options struct {
	AllowPrivate bool
	MaxRedirects int
}

func (o Options) maxRedirects() int {
	if o.MaxRedirects <= 0 {
		return defaultMaxRedirects
	}
	return o.MaxRedirects
}

// NewHTTP2 returns the preferred transport: HTTP/2 over TLS when the server
// offers it, HTTP/1.1 otherwise.
func NewHTTP2(opts Options) Transport {
	return &clientTransport{
		name: config.TransportHTTP2,
		opts: opts,
		configure: func(t *http.Transport) error {
			_, err := http2.ConfigureTransports(t)
			return err
		},
	}
}

// NewHTTP1 returns the fallback transport. It uses nothing beyond net/http
// and never negotiates HTTP/2.
func NewHTTP1(opts Options) Transport {
	return &clientTransport{
		name: config.TransportHTTP1,
		opts: opts,
		configure: func(t *http.Transport) error {
			t.ForceAttemptHTTP2 = false
			t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
			return nil
		},
	}
}

// probeHTTP2 checks that the HTTP/2 implementation can be wired into a
// transport in this build.
var probeHTTP2 = func() error {
	_, err := http2.ConfigureTransports(&http.Transport{})
	return err
}

// Select picks the transport for a run. In "auto" and "http2" mode the
// HTTP/2 transport is used when the capability probe passes; otherwise, and
// in "http1" mode, the fallback is used.
func Select(mode string, opts Options, logger *slog.Logger) Transport {
	if mode == config.TransportHTTP1 {
		return NewHTTP1(opts)
	}
	if err := probeHTTP2(); err != nil {
		logger.Warn("http2 transport unavailable, using http1 fallback", "mode", mode, "error", err)
		return NewHTTP1(opts)
	}
	return NewHTTP2(opts)
}
