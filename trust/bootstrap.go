// Package trust provisions the network trust anchor and the per-node router credentials chained to it
package trust

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/proc"
	"github.com/encodeous/dvbench/state"
)

// Anchor is the root identity of a network. It lives for the whole run.
type Anchor struct {
	Network  string
	Name     string
	KeyPath  string
	CertPath string
	Cert     []byte
}

// Credential is a node key and certificate chained to the anchor, staged on the node
type Credential struct {
	Node     state.NodeId
	Identity string
	Dir      string
	KeyPath  string
	CertPath string
	// AnchorPath is the node-local copy of the anchor certificate
	AnchorPath string
	// Keychain is the keychain locator daemons are configured with
	Keychain string
}

type Options struct {
	// Root is the local path prefix of the anchor key and certificate
	Root string
	Algo string
	// Keys is the keychain directory, relative to the node home
	Keys string
	Log  *slog.Logger
}

// Bootstrapper owns the anchor. It is not safe to provision the same node concurrently.
type Bootstrapper struct {
	tool Keytool
	opts Options

	mu     sync.Mutex
	anchor *Anchor
}

func NewBootstrapper(tool Keytool, opts Options) *Bootstrapper {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Bootstrapper{tool: tool, opts: opts}
}

// Anchor returns the anchor, if InitRoot has succeeded
func (b *Bootstrapper) Anchor() (*Anchor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.anchor, b.anchor != nil
}

// InitRoot creates the anchor of network. Repeating the call for the same network
// returns the existing anchor, a different network is a precondition failure.
func (b *Bootstrapper) InitRoot(ctx context.Context, network string) (*Anchor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.anchor != nil {
		if b.anchor.Network != network {
			return nil, fmt.Errorf("%w: trust root already initialized for %s, cannot reinitialize for %s",
				state.ErrPrecondition, b.anchor.Network, network)
		}
		return b.anchor, nil
	}

	a := &Anchor{
		Network:  network,
		KeyPath:  b.opts.Root + ".key",
		CertPath: b.opts.Root + ".cert",
	}
	if err := b.createRoot(ctx, a); err != nil {
		if rerr := removeAll(a.KeyPath, a.CertPath); rerr != nil {
			b.opts.Log.Warn("failed to remove partial trust root", "err", rerr)
		}
		return nil, err
	}
	b.anchor = a
	b.opts.Log.Info("initialized trust root", "name", a.Name)
	return a, nil
}

// createRoot writes the root key and self-signed certificate of a
func (b *Bootstrapper) createRoot(ctx context.Context, a *Anchor) error {
	if err := os.MkdirAll(filepath.Dir(a.KeyPath), 0o755); err != nil {
		return err
	}
	key, err := b.tool.Keygen(ctx, a.Network, b.opts.Algo)
	if err != nil {
		return fmt.Errorf("generate root key: %w", err)
	}
	if err := os.WriteFile(a.KeyPath, key, 0o600); err != nil {
		return err
	}
	cert, err := b.tool.SignCert(ctx, a.KeyPath, key)
	if err != nil {
		return fmt.Errorf("self-sign root certificate: %w", err)
	}
	if err := os.WriteFile(a.CertPath, cert, 0o644); err != nil {
		return err
	}
	a.Name, err = CertName(cert)
	if err != nil {
		return fmt.Errorf("root certificate %s: %w", a.CertPath, err)
	}
	a.Cert = cert
	return nil
}

// IssueNodeCredential wipes the keychain of host, then stages a fresh key for the
// role-qualified node name, its certificate and a copy of the anchor certificate.
func (b *Bootstrapper) IssueNodeCredential(ctx context.Context, host emu.Host, network, suffix string) (*Credential, error) {
	a, ok := b.Anchor()
	if !ok {
		return nil, fmt.Errorf("%w: trust root not initialized, cannot issue credential for %s",
			state.ErrPrecondition, host.Name())
	}
	if a.Network != network {
		return nil, fmt.Errorf("%w: trust root belongs to %s, not %s", state.ErrPrecondition, a.Network, network)
	}
	node := state.NodeId(host.Name())
	dir := path.Join(host.HomeDir(), b.opts.Keys)
	c := &Credential{
		Node:       node,
		Identity:   state.RoleName(network, node, suffix),
		Dir:        dir,
		KeyPath:    path.Join(dir, host.Name()+".key"),
		CertPath:   path.Join(dir, host.Name()+".cert"),
		AnchorPath: path.Join(dir, filepath.Base(a.CertPath)),
		Keychain:   "dir://" + dir,
	}
	if _, err := host.Cmd(ctx, fmt.Sprintf("rm -rf %s && mkdir -p %s", proc.Quote(dir), proc.Quote(dir))); err != nil {
		return nil, fmt.Errorf("reset keychain on %s: %w", host.Name(), err)
	}
	key, err := b.tool.Keygen(ctx, c.Identity, b.opts.Algo)
	if err != nil {
		return nil, fmt.Errorf("generate key for %s: %w", host.Name(), err)
	}
	cert, err := b.tool.SignCert(ctx, a.KeyPath, key)
	if err != nil {
		return nil, fmt.Errorf("sign certificate for %s: %w", host.Name(), err)
	}
	for _, f := range []struct {
		path string
		data []byte
		mode int64
	}{
		{c.KeyPath, key, 0o600},
		{c.CertPath, cert, 0o644},
		{c.AnchorPath, a.Cert, 0o644},
	} {
		if err := host.WriteFile(ctx, f.path, f.data, f.mode); err != nil {
			return nil, fmt.Errorf("stage %s on %s: %w", f.path, host.Name(), err)
		}
	}
	b.opts.Log.Debug("issued credential", "node", host.Name(), "identity", c.Identity)
	return c, nil
}

// Close removes the anchor material. The bootstrapper may be initialized again afterwards.
func (b *Bootstrapper) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.anchor == nil {
		return nil
	}
	err := removeAll(b.anchor.KeyPath, b.anchor.CertPath)
	b.anchor = nil
	return err
}

func removeAll(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
