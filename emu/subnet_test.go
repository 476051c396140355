package emu

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubnetAllocator(t *testing.T) {
	a, err := NewSubnetAllocator("10.77.0.0/28")
	require.NoError(t, err)

	p, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.77.0.0/29"), p)

	p, err = a.Next()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.77.0.8/29"), p)

	_, err = a.Next()
	assert.ErrorContains(t, err, "exhausted")
}

func TestSubnetAllocator_Masks(t *testing.T) {
	a, err := NewSubnetAllocator("10.77.3.9/16")
	require.NoError(t, err)
	p, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.77.0.0/29"), p)
}

func TestSubnetAllocator_Invalid(t *testing.T) {
	_, err := NewSubnetAllocator("10.77.0.0/30")
	assert.Error(t, err)
	_, err = NewSubnetAllocator("fd00::/64")
	assert.Error(t, err)
	_, err = NewSubnetAllocator("nope")
	assert.Error(t, err)
}

func TestSubnetAllocator_EndOfSpace(t *testing.T) {
	a, err := NewSubnetAllocator("255.255.255.248/29")
	require.NoError(t, err)
	_, err = a.Next()
	require.NoError(t, err)
	_, err = a.Next()
	assert.Error(t, err)
}

func TestLinkAddrs(t *testing.T) {
	gw, x, y := LinkAddrs(netip.MustParsePrefix("10.77.0.8/29"))
	assert.Equal(t, "10.77.0.9", gw.String())
	assert.Equal(t, "10.77.0.10", x.String())
	assert.Equal(t, "10.77.0.11", y.String())
}
