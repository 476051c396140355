//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/encodeous/dvbench/core"
	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
	"github.com/encodeous/dvbench/trust"
	"github.com/stretchr/testify/require"
)

const WaitTimeout = 2 * time.Minute

var subnetCounter atomic.Uint32

// Harness owns one emulated network and the environment scenarios run in
type Harness struct {
	t       *testing.T
	RootDir string
	Cfg     state.HarnessCfg
	Net     *emu.DockerNetwork
	Env     *core.Env
}

func findRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	// Traversing up to find go.mod
	rootDir := wd
	for {
		if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); err == nil {
			return rootDir, nil
		}
		parent := filepath.Dir(rootDir)
		if parent == rootDir {
			return "", fmt.Errorf("could not find project root")
		}
		rootDir = parent
	}
}

// NewHarness starts a network with the given topology. Every harness gets its own
// address range so tests can run in parallel.
func NewHarness(t *testing.T, nodes []string, graph ...string) *Harness {
	t.Helper()
	root, err := findRoot()
	require.NoError(t, err)
	if !testing.Verbose() {
		t.Log("run with -v to see the harness log")
	}

	cfg := state.DefaultHarnessConfig()
	cfg.Topology = state.TopologyCfg{Nodes: nodes, Graph: graph}
	cfg.Emulator.Image = ImageName
	cfg.Emulator.Subnet = fmt.Sprintf("10.%d.0.0/16", 100+subnetCounter.Add(1))
	cfg.Trust.Root = filepath.Join(t.TempDir(), "mn-dv-root")
	cfg.Transfer.Size = 1 << 20
	require.NoError(t, state.ValidateHarnessConfig(&cfg))

	level := slog.LevelInfo
	if testing.Verbose() {
		level = slog.LevelDebug
	}
	log, closer, err := core.NewLogger(level, "", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	tool, err := trust.NewNdndKeytool(cfg.Trust.Tool)
	if err != nil {
		t.Skipf("keys are generated on the test host: %v", err)
	}

	links, err := cfg.Topology.Links()
	require.NoError(t, err)
	ids := make([]state.NodeId, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, state.NodeId(n))
	}
	ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
	defer cancel()
	net, err := emu.NewDockerNetwork(ctx, emu.DockerOptions{
		Image:   cfg.Emulator.Image,
		Subnet:  cfg.Emulator.Subnet,
		Home:    cfg.Emulator.Home,
		Sockets: cfg.Forwarder.Sockets,
		Nodes:   ids,
		Links:   links,
		Log:     log,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = net.Stop(context.Background()) })
	h := &Harness{
		t:       t,
		RootDir: root,
		Cfg:     cfg,
		Net:     net,
		Env: core.NewEnv(core.EnvOptions{
			Cfg:     cfg,
			Net:     net,
			Keytool: tool,
			Log:     log,
		}),
	}
	t.Cleanup(func() { _ = h.Env.Close() })
	return h
}

// Host returns the named host or fails the test
func (h *Harness) Host(name string) emu.Host {
	host, ok := emu.Find(h.Net.Hosts(), name)
	if !ok {
		h.t.Fatalf("no host named %s", name)
	}
	return host
}
