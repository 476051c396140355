package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
	assert.NoError(t, NameValidator("1A"))
	assert.NoError(t, NameValidator("put-A"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("put/A"))
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func TestNetworkValidator(t *testing.T) {
	assert.NoError(t, NetworkValidator("/minindn"))
	assert.NoError(t, NetworkValidator("/a/b"))
	assert.Error(t, NetworkValidator(""))
	assert.Error(t, NetworkValidator("/"))
	assert.Error(t, NetworkValidator("minindn"))
	assert.Error(t, NetworkValidator("/minindn/"))
}

func TestTopologyValidator(t *testing.T) {
	assert.NoError(t, TopologyValidator(&TopologyCfg{
		Nodes: []string{"a", "b"},
		Graph: []string{"a, b"},
	}))
	assert.ErrorContains(t, TopologyValidator(&TopologyCfg{
		Nodes: []string{"a"},
	}), "at least 2 nodes")
	assert.ErrorContains(t, TopologyValidator(&TopologyCfg{
		Nodes: []string{"a", "a"},
		Graph: []string{"a, a"},
	}), "duplicate node: a")
	assert.ErrorContains(t, TopologyValidator(&TopologyCfg{
		Nodes: []string{"a", "b", "c"},
		Graph: []string{"a, b"},
	}), "node c has no links")
	assert.Error(t, TopologyValidator(&TopologyCfg{
		Nodes: []string{"a", "B"},
		Graph: []string{"a, b"},
	}))
}

func TestScenarioValidator(t *testing.T) {
	for _, sc := range DefaultScenarios() {
		assert.NoError(t, ScenarioValidator(sc))
	}
	valid := ScenarioCfg{Name: "x", Kind: KindFileTransfer, Forwarder: ForwarderNFD, Routes: RoutesSuffixed}
	assert.NoError(t, ScenarioValidator(valid))

	bad := valid
	bad.Kind = "chaos"
	assert.ErrorContains(t, ScenarioValidator(bad), "unknown kind")

	bad = valid
	bad.Forwarder = "yanfd"
	assert.ErrorContains(t, ScenarioValidator(bad), "unknown forwarder")

	bad = valid
	bad.Routes = "fancy"
	assert.ErrorContains(t, ScenarioValidator(bad), "unknown route format")

	bad = valid
	bad.Deadline = -time.Second
	assert.ErrorContains(t, ScenarioValidator(bad), "deadline")
}

func TestValidateHarnessConfig(t *testing.T) {
	valid := func() HarnessCfg {
		cfg := DefaultHarnessConfig()
		cfg.Topology = TopologyCfg{
			Nodes: []string{"a", "b", "c"},
			Graph: []string{"a, b", "b, c"},
		}
		return cfg
	}
	cfg := valid()
	assert.NoError(t, ValidateHarnessConfig(&cfg))

	cfg = valid()
	cfg.Emulator.Subnet = "10.0.0.0"
	assert.ErrorContains(t, ValidateHarnessConfig(&cfg), "emulator.subnet")

	cfg = valid()
	cfg.Converge.Interval = 0
	assert.Error(t, ValidateHarnessConfig(&cfg))

	cfg = valid()
	cfg.Forwarder.Port = 70000
	assert.ErrorContains(t, ValidateHarnessConfig(&cfg), "forwarder.port must be in 1..65535, got 70000")

	cfg = valid()
	cfg.Forwarder.Port = 0
	assert.ErrorContains(t, ValidateHarnessConfig(&cfg), "forwarder.port")

	cfg = valid()
	cfg.Transfer.Sample = 0
	assert.Error(t, ValidateHarnessConfig(&cfg))

	cfg = valid()
	cfg.Trust.Tool = ""
	assert.Error(t, ValidateHarnessConfig(&cfg))

	cfg = valid()
	cfg.Scenarios = append(cfg.Scenarios, cfg.Scenarios[0])
	assert.ErrorContains(t, ValidateHarnessConfig(&cfg), "duplicate scenario")

	cfg = valid()
	cfg.Topology.Nodes = nil
	assert.Error(t, ValidateHarnessConfig(&cfg))
}
