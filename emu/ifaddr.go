package emu

import (
	"bufio"
	"net/netip"
	"strings"
)

// IfAddr is one IPv4 address reported by `ip -o -4 addr show`
type IfAddr struct {
	Name   string
	Prefix netip.Prefix
}

// ParseIfAddrs reads the one-line-per-address output of `ip -o -4 addr show`, e.g.
//
//	2: eth0    inet 10.77.0.2/29 brd 10.77.0.7 scope global eth0\       valid_lft forever preferred_lft forever
func ParseIfAddrs(out string) []IfAddr {
	var addrs []IfAddr
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[2] != "inet" {
			continue
		}
		p, err := netip.ParsePrefix(fields[3])
		if err != nil {
			continue
		}
		name, _, _ := strings.Cut(fields[1], "@")
		addrs = append(addrs, IfAddr{Name: name, Prefix: p})
	}
	return addrs
}

// IntfFor returns the name of the interface that carries addr
func IntfFor(addrs []IfAddr, addr netip.Addr) (string, bool) {
	for _, a := range addrs {
		if a.Prefix.Addr() == addr {
			return a.Name, true
		}
	}
	return "", false
}
