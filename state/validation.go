package state

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strings"
)

var namePattern, _ = regexp.Compile("^[0-9A-Za-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func NetworkValidator(s string) error {
	if !strings.HasPrefix(s, "/") || len(s) < 2 {
		return fmt.Errorf("network %q must be an absolute name such as /minindn", s)
	}
	if strings.HasSuffix(s, "/") {
		return fmt.Errorf("network %q must not end with /", s)
	}
	return nil
}

func TopologyValidator(t *TopologyCfg) error {
	if len(t.Nodes) < 2 {
		return fmt.Errorf("topology needs at least 2 nodes, got %d", len(t.Nodes))
	}
	seen := make(map[string]bool)
	for _, n := range t.Nodes {
		if err := NameValidator(n); err != nil {
			return err
		}
		if seen[n] {
			return fmt.Errorf("duplicate node: %s", n)
		}
		seen[n] = true
	}
	deg, err := t.Degree()
	if err != nil {
		return err
	}
	for _, n := range t.Nodes {
		if deg[NodeId(n)] == 0 {
			return fmt.Errorf("node %s has no links", n)
		}
	}
	return nil
}

func ScenarioValidator(sc ScenarioCfg) error {
	if err := NameValidator(sc.Name); err != nil {
		return err
	}
	if !slices.Contains([]string{KindFileTransfer, KindLateJoin}, sc.Kind) {
		return fmt.Errorf("scenario %s: unknown kind %q", sc.Name, sc.Kind)
	}
	if !slices.Contains([]string{ForwarderNDNd, ForwarderNFD}, sc.Forwarder) {
		return fmt.Errorf("scenario %s: unknown forwarder %q", sc.Name, sc.Forwarder)
	}
	if !slices.Contains([]string{RoutesPlain, RoutesSuffixed}, sc.Routes) {
		return fmt.Errorf("scenario %s: unknown route format %q", sc.Name, sc.Routes)
	}
	if sc.Deadline < 0 {
		return fmt.Errorf("scenario %s: deadline must not be negative", sc.Name)
	}
	return nil
}

func ValidateHarnessConfig(cfg *HarnessCfg) error {
	if err := NetworkValidator(cfg.Network); err != nil {
		return err
	}
	if err := TopologyValidator(&cfg.Topology); err != nil {
		return err
	}
	if _, err := netip.ParsePrefix(cfg.Emulator.Subnet); err != nil {
		return fmt.Errorf("emulator.subnet: %w", err)
	}
	if cfg.Converge.Deadline <= 0 || cfg.Converge.Interval <= 0 {
		return fmt.Errorf("converge.deadline and converge.interval must be positive")
	}
	if cfg.Converge.Settle < 0 || cfg.Transfer.Grace < 0 {
		return fmt.Errorf("converge.settle and transfer.grace must not be negative")
	}
	if cfg.Transfer.Size <= 0 || cfg.Transfer.Sample <= 0 {
		return fmt.Errorf("transfer.size and transfer.sample must be positive")
	}
	if cfg.Forwarder.Port < 1 || cfg.Forwarder.Port > 65535 {
		return fmt.Errorf("forwarder.port must be in 1..65535, got %d", cfg.Forwarder.Port)
	}
	if cfg.Forwarder.Threads <= 0 {
		return fmt.Errorf("forwarder.threads must be positive")
	}
	if cfg.Trust.Tool == "" || cfg.Trust.Root == "" || cfg.Trust.Keys == "" {
		return fmt.Errorf("trust.tool, trust.root and trust.keys must be set")
	}
	names := make(map[string]bool)
	for _, sc := range cfg.Scenarios {
		if err := ScenarioValidator(sc); err != nil {
			return err
		}
		if names[sc.Name] {
			return fmt.Errorf("duplicate scenario: %s", sc.Name)
		}
		names[sc.Name] = true
	}
	return nil
}
