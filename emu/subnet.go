package emu

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// LinkBits is the prefix length of every link subnet. A /29 leaves room for the
// bridge gateway and both ends of the link.
const LinkBits = 29

// SubnetAllocator hands out consecutive link subnets from a parent prefix
type SubnetAllocator struct {
	parent netip.Prefix
	next   netip.Addr
}

func NewSubnetAllocator(parent string) (*SubnetAllocator, error) {
	p, err := netip.ParsePrefix(parent)
	if err != nil {
		return nil, err
	}
	if !p.Addr().Is4() || p.Bits() > LinkBits {
		return nil, fmt.Errorf("subnet %s must be an IPv4 prefix no longer than /%d", p, LinkBits)
	}
	p = p.Masked()
	return &SubnetAllocator{parent: p, next: p.Addr()}, nil
}

// Next returns the next free link subnet
func (a *SubnetAllocator) Next() (netip.Prefix, error) {
	if !a.next.IsValid() || !a.parent.Contains(a.next) {
		return netip.Prefix{}, fmt.Errorf("subnet %s is exhausted", a.parent)
	}
	p := netip.PrefixFrom(a.next, LinkBits)
	a.next = addOffset(a.next, 1<<(32-LinkBits))
	return p, nil
}

// LinkAddrs returns the gateway and the two endpoint addresses of a link subnet
func LinkAddrs(p netip.Prefix) (gateway, a, b netip.Addr) {
	gateway = p.Addr().Next()
	a = gateway.Next()
	b = a.Next()
	return
}

func addOffset(addr netip.Addr, off uint32) netip.Addr {
	b := addr.As4()
	v := binary.BigEndian.Uint32(b[:])
	if v+off < v {
		return netip.Addr{}
	}
	binary.BigEndian.PutUint32(b[:], v+off)
	return netip.AddrFrom4(b)
}
