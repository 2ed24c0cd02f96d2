package safenet

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserved(t *testing.T) {
	tests := []struct {
		ip       string
		reserved bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"::ffff:127.0.0.1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.reserved, Reserved(netip.MustParseAddr(tt.ip)))
		})
	}
}

func TestControl(t *testing.T) {
	assert.Nil(t, Control(true))

	ctl := Control(false)
	require.NotNil(t, ctl)

	err := ctl("tcp", "127.0.0.1:8080", nil)
	assert.ErrorIs(t, err, ErrBlocked)

	err = ctl("tcp6", "[fe80::1]:443", nil)
	assert.ErrorIs(t, err, ErrBlocked)

	err = ctl("tcp", "not-an-address", nil)
	assert.ErrorIs(t, err, ErrBlocked)

	assert.NoError(t, ctl("tcp", "8.8.8.8:53", nil))
}

func TestCheckHost(t *testing.T) {
	orig := lookup
	lookup = func(_ context.Context, _, host string) ([]netip.Addr, error) {
		switch host {
		case "intranet.example":
			return []netip.Addr{netip.MustParseAddr("93.184.216.34"), netip.MustParseAddr("10.1.2.3")}, nil
		case "public.example":
			return []netip.Addr{netip.MustParseAddr("93.184.216.34")}, nil
		default:
			return nil, errors.New("no such host")
		}
	}
	defer func() { lookup = orig }()

	tests := []struct {
		host    string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.5", true},
		{"::1", true},
		{"93.184.216.34", false},
		{"intranet.example", true},
		{"public.example", false},
		{"missing.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := CheckHost(context.Background(), tt.host)
			if tt.blocked {
				assert.ErrorIs(t, err, ErrBlocked)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
