// Package mock is an in-memory emulated network. Its hosts interpret the shell
// lines the harness emits and simulate just enough of ndnd and nfd to observe
// routing convergence and data transfer.
package mock

import (
	"context"
	"fmt"
	"io/fs"
	"net/netip"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
)

// LossThreshold is the loss percentage at which a link stops carrying routing state
const LossThreshold = 50.0

type Network struct {
	mu      sync.Mutex
	network string
	hosts   []*Host

	// Suffix is appended to router names in route listings
	Suffix string
	// Missing lists binaries that `command -v` does not find
	Missing map[string]bool
	// Corrupt lists hosts whose fetches return damaged content
	Corrupt map[string]bool
	// IgnoreLoss keeps lossy links carrying routing state
	IgnoreLoss bool

	stops int
}

type Host struct {
	net   *Network
	name  string
	home  string
	intfs []*Intf

	files   map[string][]byte
	procs   []*Proc
	nextPid int
	history []string
}

type Intf struct {
	host *Host
	name string
	ip   netip.Addr
	peer *Intf
	loss float64
}

// Proc is a simulated daemon
type Proc struct {
	Pid   int
	Argv  []string
	Env   map[string]string
	Alive bool
	// content exposed by `ndnd put`
	name string
	data []byte
}

// New builds a network of nodes connected by links. Interfaces are numbered in link order.
func New(network string, nodes []state.NodeId, links []state.Pair[state.NodeId, state.NodeId]) *Network {
	n := &Network{
		network: network,
		Missing: make(map[string]bool),
		Corrupt: make(map[string]bool),
	}
	byName := make(map[state.NodeId]*Host)
	for _, node := range nodes {
		h := &Host{
			net:     n,
			name:    string(node),
			home:    path.Join(state.DefaultHomeRoot, string(node)),
			files:   make(map[string][]byte),
			nextPid: 100,
		}
		byName[node] = h
		n.hosts = append(n.hosts, h)
	}
	for i, l := range links {
		a, b := byName[l.V1], byName[l.V2]
		base := netip.AddrFrom4([4]byte{10, 0, byte(i / 32), byte(i%32) * 8})
		ia := &Intf{host: a, name: fmt.Sprintf("%s-eth%d", a.name, len(a.intfs)), ip: base.Next().Next()}
		ib := &Intf{host: b, name: fmt.Sprintf("%s-eth%d", b.name, len(b.intfs)), ip: base.Next().Next().Next()}
		ia.peer, ib.peer = ib, ia
		a.intfs = append(a.intfs, ia)
		b.intfs = append(b.intfs, ib)
	}
	return n
}

func FromTopology(network string, topo state.TopologyCfg) (*Network, error) {
	links, err := topo.Links()
	if err != nil {
		return nil, err
	}
	nodes := make([]state.NodeId, 0, len(topo.Nodes))
	for _, n := range topo.Nodes {
		nodes = append(nodes, state.NodeId(n))
	}
	return New(network, nodes, links), nil
}

func (n *Network) Hosts() []emu.Host {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]emu.Host, 0, len(n.hosts))
	for _, h := range n.hosts {
		out = append(out, h)
	}
	return out
}

func (n *Network) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	for _, h := range n.hosts {
		for _, p := range h.procs {
			p.Alive = false
		}
	}
	return nil
}

// Boot starts a forwarder of the given kind and a router on the named hosts, or on
// every host when none are named, without going through the shell
func (n *Network) Boot(forwarder string, hosts ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fw := []string{"ndnd", "fw", "run", "yanfd.yml"}
	if forwarder == state.ForwarderNFD {
		fw = []string{"nfd", "--config", "nfd.conf"}
	}
	for _, h := range n.hosts {
		if len(hosts) > 0 && !slices.Contains(hosts, h.name) {
			continue
		}
		for _, argv := range [][]string{fw, {"ndnd", "dv", "run", "dv.config.yml"}} {
			h.procs = append(h.procs, &Proc{Pid: h.nextPid, Argv: argv, Alive: true})
			h.nextPid++
		}
	}
}

// Stops returns how many times Stop was called
func (n *Network) Stops() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stops
}

func (n *Network) Host(name string) *Host {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, h := range n.hosts {
		if h.name == name {
			return h
		}
	}
	return nil
}

func (h *Host) Name() string    { return h.name }
func (h *Host) HomeDir() string { return h.home }

func (h *Host) Intfs() []emu.Intf {
	out := make([]emu.Intf, 0, len(h.intfs))
	for _, i := range h.intfs {
		out = append(out, i)
	}
	return out
}

func (h *Host) Cmd(ctx context.Context, sh string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	if h.net.stops > 0 {
		return "", fmt.Errorf("%s: network is stopped", h.name)
	}
	h.history = append(h.history, sh)
	return h.exec(sh)
}

func (h *Host) WriteFile(ctx context.Context, p string, data []byte, mode int64) error {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	h.files[h.abs(p)] = slices.Clone(data)
	return nil
}

func (h *Host) ReadFile(ctx context.Context, p string) ([]byte, error) {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	data, ok := h.files[h.abs(p)]
	if !ok {
		return nil, fmt.Errorf("%s: read %s: %w", h.name, p, fs.ErrNotExist)
	}
	return slices.Clone(data), nil
}

// History returns every shell line run on the host
func (h *Host) History() []string {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	return slices.Clone(h.history)
}

// Ran counts the shell lines containing substr
func (h *Host) Ran(substr string) int {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	c := 0
	for _, l := range h.history {
		if strings.Contains(l, substr) {
			c++
		}
	}
	return c
}

// Procs returns a snapshot of the simulated daemons on the host
func (h *Host) Procs() []Proc {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	out := make([]Proc, 0, len(h.procs))
	for _, p := range h.procs {
		out = append(out, *p)
	}
	return out
}

// Running counts the live daemons whose command line starts with prefix
func (h *Host) Running(prefix string) int {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	return len(h.running(prefix))
}

// Files lists the paths stored on the host under dir
func (h *Host) Files(dir string) []string {
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	dir = h.abs(dir)
	var out []string
	for p := range h.files {
		if strings.HasPrefix(p, dir+"/") {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func (h *Host) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(h.home, p)
}

func (i *Intf) Name() string   { return i.name }
func (i *Intf) IP() netip.Addr { return i.ip }
func (i *Intf) Peer() emu.Intf { return i.peer }

func (i *Intf) SetLoss(ctx context.Context, pct float64) error {
	i.host.net.mu.Lock()
	defer i.host.net.mu.Unlock()
	i.loss = pct
	return nil
}

func (i *Intf) Loss() float64 {
	i.host.net.mu.Lock()
	defer i.host.net.mu.Unlock()
	return i.loss
}
