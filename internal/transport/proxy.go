package transport

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/proxy"

	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/safenet"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProxyDialer routes connections through a SOCKS5 proxy when proxyURL uses
// the socks5 or socks5h scheme. It returns nil for any other URL; HTTP
// proxies are handled by proxyFunc instead.
func ProxyDialer(proxyURL string, baseDial dialFunc) dialFunc {
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") {
		return nil
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		auth.Password, _ = u.User.Password()
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, contextDialer(baseDial))
	if err != nil {
		return nil
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
}

// guardDial refuses SOCKS targets in reserved ranges before dialing.
func guardDial(dial dialFunc) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		if err := safenet.CheckHost(ctx, host); err != nil {
			return nil, err
		}
		return dial(ctx, network, addr)
	}
}

// guardProxy refuses reserved targets before pf picks a proxy. It also
// covers targets pf sends direct.
func guardProxy(pf func(*http.Request) (*url.URL, error)) func(*http.Request) (*url.URL, error) {
	return func(r *http.Request) (*url.URL, error) {
		if err := safenet.CheckHost(r.Context(), r.URL.Hostname()); err != nil {
			return nil, err
		}
		return pf(r)
	}
}

// proxyFunc builds the http.Transport proxy hook for HTTP(S) proxies. An
// explicit CHECKIN_PROXY applies to both schemes; otherwise the standard
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY values are honored. Loopback targets
// are never proxied.
func proxyFunc(pc config.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if !pc.Enabled() {
		return nil
	}

	cfg := httpproxy.Config{
		HTTPProxy:  pc.HTTP,
		HTTPSProxy: pc.HTTPS,
		NoProxy:    pc.NoProxy,
	}
	if pc.All != "" {
		if isSOCKS(pc.All) {
			return nil
		}
		cfg.HTTPProxy = pc.All
		cfg.HTTPSProxy = pc.All
	}

	fn := cfg.ProxyFunc()
	return func(r *http.Request) (*url.URL, error) {
		return fn(r.URL)
	}
}

func isSOCKS(raw string) bool {
	return strings.HasPrefix(strings.ToLower(raw), "socks5")
}

// contextDialer adapts a DialContext function to proxy.Dialer.
type contextDialer dialFunc

func (d contextDialer) Dial(network, addr string) (net.Conn, error) {
	return d(context.Background(), network, addr)
}

func (d contextDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d(ctx, network, addr)
}
