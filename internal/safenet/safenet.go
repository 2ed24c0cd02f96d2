// Package safenet keeps check-in requests away from loopback, link-local
// and other reserved networks when the operator asks for it.
package safenet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
)

// ErrBlocked is wrapped by every refusal from Control and CheckHost.
var ErrBlocked = errors.New("address blocked")

var reserved = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"::/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// Reserved reports whether addr belongs to a private, loopback, link-local,
// documentation or multicast range.
func Reserved(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range reserved {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Control returns a net.Dialer Control hook. With allowPrivate set it
// returns nil and every address is allowed. The hook runs after name
// resolution, so hostnames that resolve into a reserved range are caught too.
func Control(allowPrivate bool) func(network, address string, c syscall.RawConn) error {
	if allowPrivate {
		return nil
	}
	return check
}

var lookup = net.DefaultResolver.LookupNetIP

// CheckHost refuses host when it is, or resolves to, a reserved address. It
// is used when a proxy makes the dial hook see the proxy instead of the
// target. Resolution failures are refused as well.
func CheckHost(ctx context.Context, host string) error {
	if addr, err := netip.ParseAddr(host); err == nil {
		if Reserved(addr) {
			return fmt.Errorf("%w: %s is in a reserved range", ErrBlocked, addr)
		}
		return nil
	}
	addrs, err := lookup(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrBlocked, host, err)
	}
	for _, a := range addrs {
		if Reserved(a) {
			return fmt.Errorf("%w: %s resolves to %s", ErrBlocked, host, a.Unmap())
		}
	}
	return nil
}

func check(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: unparseable address %q", ErrBlocked, address)
	}
	if Reserved(ap.Addr()) {
		return fmt.Errorf("%w: %s is in a reserved range", ErrBlocked, ap.Addr())
	}
	return nil
}
