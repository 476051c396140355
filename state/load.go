package state

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides, e.g. DVBENCH_CONVERGE_DEADLINE -> converge.deadline
const EnvPrefix = "DVBENCH_"

// LoadHarnessConfig layers defaults, the YAML file at path (skipped when path is empty) and
// DVBENCH_ environment variables, then validates the result.
func LoadHarnessConfig(path string) (*HarnessCfg, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultHarnessConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &HarnessCfg{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := ValidateHarnessConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

func loadDefaults(k *koanf.Koanf, d HarnessCfg) error {
	scenarios := make([]map[string]any, 0, len(d.Scenarios))
	for _, sc := range d.Scenarios {
		scenarios = append(scenarios, map[string]any{
			"name":      sc.Name,
			"kind":      sc.Kind,
			"forwarder": sc.Forwarder,
			"routes":    sc.Routes,
			"deadline":  sc.Deadline.String(),
		})
	}
	defaults := map[string]any{
		"network":           d.Network,
		"seed":              d.Seed,
		"log.level":         d.Log.Level,
		"log.path":          d.Log.Path,
		"topology.nodes":    d.Topology.Nodes,
		"topology.graph":    d.Topology.Graph,
		"emulator.image":    d.Emulator.Image,
		"emulator.subnet":   d.Emulator.Subnet,
		"emulator.home":     d.Emulator.Home,
		"forwarder.level":   d.Forwarder.Level,
		"forwarder.threads": d.Forwarder.Threads,
		"forwarder.sockets": d.Forwarder.Sockets,
		"forwarder.port":    d.Forwarder.Port,
		"trust.root":        d.Trust.Root,
		"trust.tool":        d.Trust.Tool,
		"trust.algo":        d.Trust.Algo,
		"trust.suffix":      d.Trust.Suffix,
		"trust.keys":        d.Trust.Keys,
		"converge.deadline": d.Converge.Deadline.String(),
		"converge.interval": d.Converge.Interval.String(),
		"converge.settle":   d.Converge.Settle.String(),
		"transfer.size":     d.Transfer.Size,
		"transfer.grace":    d.Transfer.Grace.String(),
		"transfer.sample":   d.Transfer.Sample,
		"transfer.path":     d.Transfer.Path,
		"transfer.name":     d.Transfer.Name,
		"scenarios":         scenarios,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}
