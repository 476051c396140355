package emu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/encodeous/dvbench/state"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcnetwork "github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

const StartupTimeout = 30 * time.Second

// RunLabel tags every container and link network of a run with the run id
const RunLabel = "dev.dvbench.run"

type DockerOptions struct {
	Image  string
	Subnet string
	Home   string
	// Sockets is created on every host so forwarders can bind their unix sockets
	Sockets string
	Nodes   []state.NodeId
	Links   []state.Pair[state.NodeId, state.NodeId]
	Log     *slog.Logger
	// RunID labels the docker resources of this network. A random id is used if empty.
	RunID string
}

// DockerNetwork emulates every node as a privileged container and every link as
// its own docker bridge network with a dedicated /29.
type DockerNetwork struct {
	RunID string

	log   *slog.Logger
	mu    sync.Mutex
	hosts []*dockerHost
	nets  []*testcontainers.DockerNetwork
	done  bool
}

type dockerHost struct {
	name  string
	home  string
	c     testcontainers.Container
	intfs []*dockerIntf
	// link network name -> address on that link
	addrs   map[string]netip.Addr
	ifaddrs []IfAddr
}

type dockerIntf struct {
	host *dockerHost
	name string
	ip   netip.Addr
	peer *dockerIntf
}

func NewDockerNetwork(ctx context.Context, opts DockerOptions) (*DockerNetwork, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	alloc, err := NewSubnetAllocator(opts.Subnet)
	if err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	labels := map[string]string{RunLabel: opts.RunID}
	n := &DockerNetwork{RunID: opts.RunID, log: opts.Log}
	byName := make(map[state.NodeId]*dockerHost)
	for _, node := range opts.Nodes {
		h := &dockerHost{
			name:  string(node),
			home:  path.Join(opts.Home, string(node)),
			addrs: make(map[string]netip.Addr),
		}
		byName[node] = h
		n.hosts = append(n.hosts, h)
	}

	type pendingLink struct {
		a, b   *dockerHost
		ia, ib netip.Addr
	}
	links := make([]pendingLink, 0, len(opts.Links))
	for _, l := range opts.Links {
		a, b := byName[l.V1], byName[l.V2]
		if a == nil || b == nil {
			n.Stop(ctx)
			return nil, fmt.Errorf("link %s-%s references an unknown node", l.V1, l.V2)
		}
		prefix, err := alloc.Next()
		if err != nil {
			n.Stop(ctx)
			return nil, err
		}
		gw, ia, ib := LinkAddrs(prefix)
		nw, err := tcnetwork.New(ctx,
			tcnetwork.WithAttachable(),
			tcnetwork.WithInternal(),
			tcnetwork.WithDriver("bridge"),
			tcnetwork.WithLabels(labels),
			tcnetwork.WithIPAM(&network.IPAM{
				Driver: "default",
				Config: []network.IPAMConfig{
					{
						Subnet:  prefix.String(),
						Gateway: gw.String(),
					},
				},
			}))
		if err != nil {
			n.Stop(ctx)
			return nil, fmt.Errorf("create link %s-%s: %w", l.V1, l.V2, err)
		}
		n.nets = append(n.nets, nw)
		a.addrs[nw.Name] = ia
		b.addrs[nw.Name] = ib
		links = append(links, pendingLink{a, b, ia, ib})
		n.log.Debug("created link", "a", l.V1, "b", l.V2, "subnet", prefix)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range n.hosts {
		g.Go(func() error {
			return h.start(gctx, opts, labels)
		})
	}
	if err := g.Wait(); err != nil {
		n.Stop(ctx)
		return nil, err
	}

	for _, h := range n.hosts {
		out, err := h.Cmd(ctx, "ip -o -4 addr show")
		if err != nil {
			n.Stop(ctx)
			return nil, fmt.Errorf("list interfaces on %s: %w", h.name, err)
		}
		h.ifaddrs = ParseIfAddrs(out)
	}
	for _, l := range links {
		ia, err := l.a.intfFor(l.ia)
		if err != nil {
			n.Stop(ctx)
			return nil, err
		}
		ib, err := l.b.intfFor(l.ib)
		if err != nil {
			n.Stop(ctx)
			return nil, err
		}
		ia.peer, ib.peer = ib, ia
		l.a.intfs = append(l.a.intfs, ia)
		l.b.intfs = append(l.b.intfs, ib)
	}
	n.log.Info("emulated network is up", "run", n.RunID, "nodes", len(n.hosts), "links", len(links))
	return n, nil
}

func (n *DockerNetwork) Hosts() []Host {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Host, 0, len(n.hosts))
	for _, h := range n.hosts {
		out = append(out, h)
	}
	return out
}

// Stop terminates every container and removes every link network. Later calls are no-ops.
func (n *DockerNetwork) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done {
		return nil
	}
	n.done = true
	var errs []error
	for _, h := range n.hosts {
		if h.c == nil {
			continue
		}
		if err := h.c.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate %s: %w", h.name, err))
		}
	}
	for _, nw := range n.nets {
		if err := nw.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("remove network %s: %w", nw.Name, err))
		}
	}
	n.log.Info("emulated network stopped")
	return errors.Join(errs...)
}

func (h *dockerHost) start(ctx context.Context, opts DockerOptions, labels map[string]string) error {
	networks := make([]string, 0, len(h.addrs))
	aliases := make(map[string][]string)
	for name := range h.addrs {
		networks = append(networks, name)
		aliases[name] = []string{h.name}
	}
	req := testcontainers.ContainerRequest{
		Image:          opts.Image,
		Entrypoint:     []string{"sleep", "infinity"},
		Labels:         labels,
		Networks:       networks,
		NetworkAliases: aliases,
		WaitingFor:     wait.ForExec([]string{"true"}).WithStartupTimeout(StartupTimeout),
		ConfigModifier: func(cfg *container.Config) {
			cfg.Hostname = h.name
		},
		HostConfigModifier: func(hostConfig *container.HostConfig) {
			hostConfig.Privileged = true
			hostConfig.CapAdd = []string{"NET_ADMIN"}
		},
		EndpointSettingsModifier: func(m map[string]*network.EndpointSettings) {
			for name, ip := range h.addrs {
				if s, ok := m[name]; ok {
					s.IPAMConfig = &network.EndpointIPAMConfig{
						IPv4Address: ip.String(),
					}
				}
			}
		},
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("start container %s: %w", h.name, err)
	}
	h.c = c
	if _, err := h.Cmd(ctx, mkdirLine(h.home, opts.Sockets)); err != nil {
		return fmt.Errorf("prepare %s: %w", h.name, err)
	}
	return nil
}

func (h *dockerHost) intfFor(ip netip.Addr) (*dockerIntf, error) {
	name, ok := IntfFor(h.ifaddrs, ip)
	if !ok {
		return nil, fmt.Errorf("%s has no interface with address %s", h.name, ip)
	}
	return &dockerIntf{host: h, name: name, ip: ip}, nil
}

func (h *dockerHost) Name() string    { return h.name }
func (h *dockerHost) HomeDir() string { return h.home }

func (h *dockerHost) Intfs() []Intf {
	out := make([]Intf, 0, len(h.intfs))
	for _, i := range h.intfs {
		out = append(out, i)
	}
	return out
}

func (h *dockerHost) Cmd(ctx context.Context, sh string) (string, error) {
	code, r, err := h.c.Exec(ctx, []string{"sh", "-c", sh})
	if err != nil {
		return "", err
	}
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	if _, err := stdcopy.StdCopy(stdout, stderr, r); err != nil {
		return "", fmt.Errorf("failed to copy output: %w", err)
	}
	if code != 0 {
		return stdout.String(), fmt.Errorf("%s: %q exited with code %d: %s", h.name, sh, code, stderr.String())
	}
	return stdout.String(), nil
}

func (h *dockerHost) WriteFile(ctx context.Context, p string, data []byte, mode int64) error {
	if _, err := h.Cmd(ctx, mkdirLine(path.Dir(p))); err != nil {
		return err
	}
	return h.c.CopyToContainer(ctx, data, p, mode)
}

func (h *dockerHost) ReadFile(ctx context.Context, p string) ([]byte, error) {
	r, err := h.c.CopyFileFromContainer(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", h.name, p, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (i *dockerIntf) Name() string   { return i.name }
func (i *dockerIntf) IP() netip.Addr { return i.ip }
func (i *dockerIntf) Peer() Intf     { return i.peer }

func (i *dockerIntf) SetLoss(ctx context.Context, pct float64) error {
	_, err := i.host.Cmd(ctx, fmt.Sprintf("tc qdisc replace dev %s root netem loss %s%%",
		quote(i.name), strconv.FormatFloat(pct, 'f', -1, 64)))
	return err
}
