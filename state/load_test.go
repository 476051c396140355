package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dvbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadHarnessConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
topology:
  nodes: [a, b, c]
  graph:
    - a, b
    - b, c
`)
	cfg, err := LoadHarnessConfig(path)
	require.NoError(t, err)

	expected := DefaultHarnessConfig()
	expected.Topology = TopologyCfg{
		Nodes: []string{"a", "b", "c"},
		Graph: []string{"a, b", "b, c"},
	}
	if diff := cmp.Diff(&expected, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadHarnessConfig_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
network: /testnet
seed: 42
topology:
  nodes: [a, b]
  graph: ["a, b"]
converge:
  deadline: 45s
transfer:
  size: 1024
scenarios:
  - name: only
    kind: late-join
    forwarder: ndnd
    routes: suffixed
`)
	cfg, err := LoadHarnessConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/testnet", cfg.Network)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 45*time.Second, cfg.Converge.Deadline)
	assert.Equal(t, ConvergeInterval, cfg.Converge.Interval)
	assert.Equal(t, 1024, cfg.Transfer.Size)
	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, ScenarioCfg{
		Name:      "only",
		Kind:      KindLateJoin,
		Forwarder: ForwarderNDNd,
		Routes:    RoutesSuffixed,
	}, cfg.Scenarios[0])
}

func TestLoadHarnessConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
topology:
  nodes: [a, b]
  graph: ["a, b"]
converge:
  deadline: 45s
`)
	t.Setenv("DVBENCH_CONVERGE_DEADLINE", "90s")
	t.Setenv("DVBENCH_NETWORK", "/fromenv")
	cfg, err := LoadHarnessConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Converge.Deadline)
	assert.Equal(t, "/fromenv", cfg.Network)
}

func TestLoadHarnessConfig_MixedCaseNodes(t *testing.T) {
	path := writeConfig(t, `
topology:
  nodes: [put-A, cat-B]
  graph: ["put-A, cat-B"]
`)
	cfg, err := LoadHarnessConfig(path)
	require.NoError(t, err)
	links, err := cfg.Topology.Links()
	require.NoError(t, err)
	assert.Equal(t, []Pair[NodeId, NodeId]{{"cat-B", "put-A"}}, links)
	assert.Equal(t, "/minindn/put-A", Identity(cfg.Network, "put-A"))
}

func TestLoadHarnessConfig_Errors(t *testing.T) {
	_, err := LoadHarnessConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "load config from")

	// the default topology is empty
	_, err = LoadHarnessConfig("")
	assert.ErrorContains(t, err, "validate config")

	path := writeConfig(t, `
network: minindn
topology:
  nodes: [a, b]
  graph: ["a, b"]
`)
	_, err = LoadHarnessConfig(path)
	assert.ErrorContains(t, err, "absolute name")
}
