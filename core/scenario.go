package core

import (
	"context"
	"fmt"

	"github.com/encodeous/dvbench/apps"
	"github.com/encodeous/dvbench/state"
)

type Scenario interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

// Build returns the scenario described by cfg
func Build(cfg state.ScenarioCfg) (Scenario, error) {
	kind, err := apps.ParseForwarderKind(cfg.Forwarder)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", cfg.Name, err)
	}
	switch cfg.Kind {
	case state.KindFileTransfer:
		return &FileTransfer{Cfg: cfg, Kind: kind}, nil
	case state.KindLateJoin:
		return &LateJoin{Cfg: cfg, Kind: kind}, nil
	}
	return nil, fmt.Errorf("scenario %s: unknown kind %q", cfg.Name, cfg.Kind)
}

// BuildAll builds the named scenarios in the given order, or every configured
// scenario if no names are given
func BuildAll(cfg state.HarnessCfg, names ...string) ([]Scenario, error) {
	selected := cfg.Scenarios
	if len(names) > 0 {
		selected = make([]state.ScenarioCfg, 0, len(names))
		for _, name := range names {
			sc, ok := cfg.FindScenario(name)
			if !ok {
				return nil, fmt.Errorf("unknown scenario %q", name)
			}
			selected = append(selected, sc)
		}
	}
	out := make([]Scenario, 0, len(selected))
	for _, sc := range selected {
		s, err := Build(sc)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// FileTransfer provisions every node, waits for routing to converge and checks that
// published content can be fetched across the network
type FileTransfer struct {
	Cfg  state.ScenarioCfg
	Kind apps.ForwarderKind
}

func (s *FileTransfer) Name() string { return s.Cfg.Name }

func (s *FileTransfer) Run(ctx context.Context, env *Env) error {
	hosts := env.Net.Hosts()
	d, err := Provision(ctx, env, s.Kind, hosts)
	if err != nil {
		return err
	}
	if _, err := Converge(ctx, env, s.Cfg, d, "all", hosts); err != nil {
		return err
	}
	return TransferFiles(ctx, env, hosts)
}
