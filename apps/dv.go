package apps

import (
	"context"
	"fmt"
	"net/netip"
	"path"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/proc"
	"github.com/encodeous/dvbench/state"
	"github.com/encodeous/dvbench/trust"
	"github.com/goccy/go-yaml"
)

type DVOptions struct {
	Network    string
	Port       int
	Anchor     *trust.Anchor
	Credential *trust.Credential
}

type DV struct {
	Daemon
	Config string
	Router string
}

type dvConfig struct {
	DV dvSection `yaml:"dv"`
}

type dvSection struct {
	Network      string     `yaml:"network"`
	Router       string     `yaml:"router"`
	Keychain     string     `yaml:"keychain"`
	TrustAnchors []string   `yaml:"trust_anchors"`
	Neighbors    []neighbor `yaml:"neighbors"`
}

type neighbor struct {
	URI string `yaml:"uri"`
}

// NeighborURI is the face a router uses to reach the far end of a link
func NeighborURI(addr netip.Addr, port int) string {
	return fmt.Sprintf("udp4://%s", netip.AddrPortFrom(addr, uint16(port)))
}

// NewDV writes the router configuration on host. The trust anchor and the node
// credential must exist beforehand.
func NewDV(ctx context.Context, host emu.Host, opts DVOptions) (*DV, error) {
	if opts.Anchor == nil {
		return nil, fmt.Errorf("%w: trust root not initialized, cannot configure router on %s", state.ErrPrecondition, host.Name())
	}
	if opts.Credential == nil || opts.Credential.Node != state.NodeId(host.Name()) {
		return nil, fmt.Errorf("%w: no credential issued for %s", state.ErrPrecondition, host.Name())
	}
	if err := RequireBinary(ctx, host, "ndnd"); err != nil {
		return nil, err
	}
	cfg := dvConfig{DV: dvSection{
		Network:      opts.Network,
		Router:       state.Identity(opts.Network, state.NodeId(host.Name())),
		Keychain:     opts.Credential.Keychain,
		TrustAnchors: []string{opts.Anchor.Name},
		Neighbors:    make([]neighbor, 0),
	}}
	for _, intf := range host.Intfs() {
		cfg.DV.Neighbors = append(cfg.DV.Neighbors, neighbor{URI: NeighborURI(intf.Peer().IP(), opts.Port)})
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	d := &DV{
		Config: path.Join(host.HomeDir(), "dv.config.yml"),
		Router: cfg.DV.Router,
	}
	d.Host = host
	d.Spec = proc.Spec{
		Command: "ndnd dv run " + proc.Quote(d.Config),
		Dir:     host.HomeDir(),
		LogFile: "dv.log",
	}
	if err := host.WriteFile(ctx, d.Config, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s on %s: %w", d.Config, host.Name(), err)
	}
	return d, nil
}
