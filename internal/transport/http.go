package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/y0f/checkin/internal/request"
	"github.com/y0f/checkin/internal/safenet"
)

// clientTransport is shared by both implementations; they differ only in
// how the underlying http.Transport is configured.
type clientTransport struct {
	name      string
	opts      Options
	configure func(*http.Transport) error
}

func (c *clientTransport) Name() string { return c.name }

func (c *clientTransport) Do(ctx context.Context, d *request.Descriptor) *Snapshot {
	var bodyReader io.Reader
	if d.Body != nil {
		bodyReader = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL, bodyReader)
	if err != nil {
		return &Snapshot{Err: &TransportError{Kind: KindRequest, Err: err}}
	}
	for _, h := range d.Headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Set(h.Name, h.Value)
	}

	rt, err := c.roundTripper(d)
	if err != nil {
		return &Snapshot{Err: &TransportError{Kind: KindRequest, Err: err}}
	}
	defer rt.CloseIdleConnections()

	client := &http.Client{
		Transport:     rt,
		Timeout:       d.Timeout,
		CheckRedirect: limitRedirects(c.opts.maxRedirects()),
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return &Snapshot{Elapsed: time.Since(start), Err: classify(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	elapsed := time.Since(start)
	if err != nil {
		return &Snapshot{Elapsed: elapsed, Err: classify(err)}
	}

	return &Snapshot{
		StatusCode: resp.StatusCode,
		Body:       decodeBody(raw, resp.Header.Get("Content-Type")),
		Proto:      resp.Proto,
		Elapsed:    elapsed,
	}
}

func (c *clientTransport) roundTripper(d *request.Descriptor) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: d.Timeout}

	t := &http.Transport{
		DialContext:         dialer.DialContext,
		Proxy:               proxyFunc(d.Proxy),
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !d.VerifyTLS},
		TLSHandshakeTimeout: d.Timeout,
		DisableKeepAlives:   true,
	}
	socks := ProxyDialer(d.Proxy.All, dialer.DialContext)

	// Behind a proxy the dial hook only sees the proxy address, so the
	// target host is checked before the request leaves instead.
	switch {
	case c.opts.AllowPrivate:
	case socks != nil:
		socks = guardDial(socks)
	case t.Proxy != nil:
		t.Proxy = guardProxy(t.Proxy)
	default:
		dialer.Control = safenet.Control(false)
	}

	if socks != nil {
		t.DialContext = socks
		t.Proxy = nil
	}

	if err := c.configure(t); err != nil {
		return nil, fmt.Errorf("configure %s transport: %w", c.name, err)
	}
	return t, nil
}

func limitRedirects(limit int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return &redirectError{hops: len(via)}
		}
		return nil
	}
}

type redirectError struct{ hops int }

func (e *redirectError) Error() string {
	return fmt.Sprintf("stopped after %d redirects", e.hops)
}
