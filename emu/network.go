// Package emu describes the emulated network the harness drives: hosts that run
// shell commands, and point-to-point links whose loss can be changed at runtime.
package emu

import (
	"context"
	"net/netip"
	"slices"

	"github.com/encodeous/dvbench/state"
)

// Network is a running emulated network. Stop tears it down and may be called more than once.
type Network interface {
	Hosts() []Host
	Stop(ctx context.Context) error
}

type Host interface {
	Name() string
	// HomeDir is the working directory of every daemon started on this host
	HomeDir() string
	Intfs() []Intf
	// Cmd runs a shell line on the host and returns its stdout. A non-zero exit status is an error.
	Cmd(ctx context.Context, sh string) (string, error)
	WriteFile(ctx context.Context, path string, data []byte, mode int64) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Intf is one end of a point-to-point link
type Intf interface {
	Name() string
	IP() netip.Addr
	Peer() Intf
	// SetLoss sets the egress packet loss of this interface, in percent
	SetLoss(ctx context.Context, pct float64) error
}

// Leaves returns the hosts with exactly one interface
func Leaves(hosts []Host) []Host {
	var out []Host
	for _, h := range hosts {
		if len(h.Intfs()) == 1 {
			out = append(out, h)
		}
	}
	return out
}

// Without returns hosts minus the given ones, preserving order
func Without(hosts []Host, drop ...Host) []Host {
	return slices.DeleteFunc(slices.Clone(hosts), func(h Host) bool {
		return slices.ContainsFunc(drop, func(d Host) bool {
			return d.Name() == h.Name()
		})
	})
}

func Names(hosts []Host) []state.NodeId {
	out := make([]state.NodeId, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, state.NodeId(h.Name()))
	}
	return out
}

// Find returns the host with the given name
func Find(hosts []Host, name string) (Host, bool) {
	idx := slices.IndexFunc(hosts, func(h Host) bool {
		return h.Name() == name
	})
	if idx == -1 {
		return nil, false
	}
	return hosts[idx], true
}
