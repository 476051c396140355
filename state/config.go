package state

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// HarnessCfg is the complete configuration of a test run
type HarnessCfg struct {
	Network   string        `koanf:"network"`
	Seed      uint64        `koanf:"seed"`
	Log       LogCfg        `koanf:"log"`
	Topology  TopologyCfg   `koanf:"topology"`
	Emulator  EmulatorCfg   `koanf:"emulator"`
	Forwarder ForwarderCfg  `koanf:"forwarder"`
	Trust     TrustCfg      `koanf:"trust"`
	Converge  ConvergeCfg   `koanf:"converge"`
	Transfer  TransferCfg   `koanf:"transfer"`
	Scenarios []ScenarioCfg `koanf:"scenarios"`
}

type LogCfg struct {
	Level string `koanf:"level"` // debug, info, warn or error
	Path  string `koanf:"path"`  // if not empty, the run log is also appended to this file
}

// TopologyCfg describes the emulated network. Every pair produced by Graph becomes a point-to-point link.
type TopologyCfg struct {
	Nodes []string `koanf:"nodes"`
	Graph []string `koanf:"graph"`
}

type EmulatorCfg struct {
	Image  string `koanf:"image"`  // container image providing ndnd, nfd, tc and iproute2
	Subnet string `koanf:"subnet"` // link subnets are carved out of this prefix
	Home   string `koanf:"home"`   // per-node home directories live under this path
}

type ForwarderCfg struct {
	Level   string `koanf:"level"`
	Threads int    `koanf:"threads"`
	Sockets string `koanf:"sockets"` // directory holding the per-node unix sockets
	Port    int    `koanf:"port"`
}

type TrustCfg struct {
	Root   string `koanf:"root"` // path prefix of the root key and certificate
	Tool   string `koanf:"tool"`
	Algo   string `koanf:"algo"`
	Suffix string `koanf:"suffix"` // role component appended to router key names
	Keys   string `koanf:"keys"`   // keychain directory name, relative to the node home
}

type ConvergeCfg struct {
	Deadline time.Duration `koanf:"deadline"`
	Interval time.Duration `koanf:"interval"`
	Settle   time.Duration `koanf:"settle"`
}

type TransferCfg struct {
	Size   int           `koanf:"size"`
	Grace  time.Duration `koanf:"grace"`
	Sample int           `koanf:"sample"`
	Path   string        `koanf:"path"` // where publishers keep the payload
	Name   string        `koanf:"name"` // last component of the published name
}

// ScenarioCfg selects one scenario. Deadline falls back to converge.deadline when zero.
type ScenarioCfg struct {
	Name      string        `koanf:"name"`
	Kind      string        `koanf:"kind"`
	Forwarder string        `koanf:"forwarder"`
	Routes    string        `koanf:"routes"`
	Deadline  time.Duration `koanf:"deadline"`
}

func DefaultHarnessConfig() HarnessCfg {
	return HarnessCfg{
		Network: DefaultNetwork,
		Seed:    0,
		Log: LogCfg{
			Level: "info",
		},
		Emulator: EmulatorCfg{
			Image:  DefaultImage,
			Subnet: DefaultSubnet,
			Home:   DefaultHomeRoot,
		},
		Forwarder: ForwarderCfg{
			Level:   "INFO",
			Threads: 2,
			Sockets: DefaultSocketDir,
			Port:    DefaultPort,
		},
		Trust: TrustCfg{
			Root:   DefaultRootPath,
			Tool:   "ndnd",
			Algo:   "ed25519",
			Suffix: DefaultRoleSuffix,
			Keys:   "dv-keys",
		},
		Converge: ConvergeCfg{
			Deadline: ConvergeDeadline,
			Interval: ConvergeInterval,
			Settle:   SettleDelay,
		},
		Transfer: TransferCfg{
			Size:   PayloadSize,
			Grace:  PublishGrace,
			Sample: MaxSample,
			Path:   "/tmp/test.bin",
			Name:   "test",
		},
		Scenarios: DefaultScenarios(),
	}
}

func DefaultScenarios() []ScenarioCfg {
	return []ScenarioCfg{
		{Name: "file-transfer-ndnd", Kind: KindFileTransfer, Forwarder: ForwarderNDNd, Routes: RoutesPlain},
		{Name: "file-transfer-nfd", Kind: KindFileTransfer, Forwarder: ForwarderNFD, Routes: RoutesPlain},
		{Name: "late-join", Kind: KindLateJoin, Forwarder: ForwarderNDNd, Routes: RoutesPlain, Deadline: 2 * ConvergeDeadline},
	}
}

// DeadlineFor returns the convergence deadline of a scenario
func (c *HarnessCfg) DeadlineFor(sc ScenarioCfg) time.Duration {
	if sc.Deadline > 0 {
		return sc.Deadline
	}
	return c.Converge.Deadline
}

func (c *HarnessCfg) FindScenario(name string) (ScenarioCfg, bool) {
	idx := slices.IndexFunc(c.Scenarios, func(sc ScenarioCfg) bool {
		return sc.Name == name
	})
	if idx == -1 {
		return ScenarioCfg{}, false
	}
	return c.Scenarios[idx], true
}

// Links returns the sorted, de-duplicated links of the topology
func (t *TopologyCfg) Links() ([]Pair[NodeId, NodeId], error) {
	return ParseGraph(t.Graph, t.Nodes)
}

// Degree returns how many links each node takes part in
func (t *TopologyCfg) Degree() (map[NodeId]int, error) {
	links, err := t.Links()
	if err != nil {
		return nil, err
	}
	deg := make(map[NodeId]int)
	for _, n := range t.Nodes {
		deg[NodeId(n)] = 0
	}
	for _, l := range links {
		deg[l.V1]++
		deg[l.V2]++
	}
	return deg, nil
}

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	spl := strings.Split(strings.TrimSpace(s), ",")
	line := make([]string, 0)
	for _, s := range spl {
		x := strings.TrimSpace(s)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf(`%s is not a valid node/group`, x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf(`node/group list must not be empty`)
	}
	slices.Sort(line)
	return line, nil
}

/*
ParseGraph expands a topology description into links.

	core = a, b, c   // a group
	core, core       // a, b and c are all linked to each other
	core, d          // d is linked to a, b and c
	d, e             // d and e are linked

nodes is the set of terminal node names the graph evaluates down to
*/
func ParseGraph(graph []string, nodes []string) ([]Pair[NodeId, NodeId], error) {
	symbols := slices.Clone(nodes)

	// pass 0, collect group names
	for _, line := range graph {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "=") {
			continue
		}
		spl := strings.Split(line, "=")
		if len(spl) != 2 {
			return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
		}
		grp := strings.TrimSpace(spl[0])
		if slices.Contains(nodes, grp) {
			return nil, fmt.Errorf("group name must not be a node name: %s", grp)
		}
		symbols = append(symbols, grp)
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	// group -> groups it still depends on
	deps := make(map[string][]string)
	expansion := make(map[string][]string)
	pairings := make([]Pair[string, string], 0)

	// pass 1, parse lines
	for _, line := range graph {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "=") {
			spl := strings.Split(line, "=")
			grp := strings.TrimSpace(spl[0])
			if _, ok := deps[grp]; ok {
				return nil, fmt.Errorf("duplicate group name: %s", grp)
			}
			lst, err := parseSymbolList(spl[1], symbols)
			if err != nil {
				return nil, err
			}
			groupDeps := make([]string, 0)
			for _, l := range lst {
				if slices.Contains(nodes, l) {
					expansion[grp] = append(expansion[grp], l)
				} else {
					groupDeps = append(groupDeps, l)
				}
			}
			slices.Sort(groupDeps)
			deps[grp] = slices.Compact(groupDeps)
			continue
		}
		names, err := parseSymbolList(line, symbols)
		if err != nil {
			return nil, err
		}
		if len(names) < 2 {
			return nil, fmt.Errorf("invalid pairing, %v", names)
		}
		for i, a := range names {
			for _, b := range names[i+1:] {
				pairings = append(pairings, MakeSortedPair(a, b))
			}
		}
	}

	// pass 2, expand groups in topological order
	for len(deps) > 0 {
		var group string
		for k, v := range deps {
			if len(v) == 0 {
				group = k
				break
			}
		}
		if group == "" {
			cycle := make([]string, 0, len(deps))
			for k := range deps {
				cycle = append(cycle, k)
			}
			slices.Sort(cycle)
			return nil, fmt.Errorf("cycle detected in graph: %v", cycle)
		}
		delete(deps, group)
		for k, d := range deps {
			if !slices.Contains(d, group) {
				continue
			}
			expansion[k] = append(expansion[k], expansion[group]...)
			slices.Sort(expansion[k])
			expansion[k] = slices.Compact(expansion[k])
			deps[k] = slices.DeleteFunc(d, func(s string) bool { return s == group })
		}
	}

	// pass 3, rewrite pairings in terms of nodes
	resolve := func(sym string) []string {
		if slices.Contains(nodes, sym) {
			return []string{sym}
		}
		return expansion[sym]
	}
	links := make([]Pair[NodeId, NodeId], 0)
	for _, p := range pairings {
		for _, x := range resolve(p.V1) {
			for _, y := range resolve(p.V2) {
				if x != y {
					links = append(links, MakeSortedPair(NodeId(x), NodeId(y)))
				}
			}
		}
	}
	SortPairs(links)
	return slices.Compact(links), nil
}
