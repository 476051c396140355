package emu

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

const ipAddrOutput = `1: lo    inet 127.0.0.1/8 scope host lo\       valid_lft forever preferred_lft forever
24: eth0@if25    inet 10.77.0.2/29 brd 10.77.0.7 scope global eth0\       valid_lft forever preferred_lft forever
26: eth1    inet 10.77.0.11/29 brd 10.77.0.15 scope global eth1\       valid_lft forever preferred_lft forever
garbage
3: eth2    inet nonsense
`

func TestParseIfAddrs(t *testing.T) {
	addrs := ParseIfAddrs(ipAddrOutput)
	assert.Equal(t, []IfAddr{
		{Name: "lo", Prefix: netip.MustParsePrefix("127.0.0.1/8")},
		{Name: "eth0", Prefix: netip.MustParsePrefix("10.77.0.2/29")},
		{Name: "eth1", Prefix: netip.MustParsePrefix("10.77.0.11/29")},
	}, addrs)

	name, ok := IntfFor(addrs, netip.MustParseAddr("10.77.0.11"))
	assert.True(t, ok)
	assert.Equal(t, "eth1", name)

	_, ok = IntfFor(addrs, netip.MustParseAddr("10.77.0.3"))
	assert.False(t, ok)
}
