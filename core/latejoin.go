package core

import (
	"context"
	"fmt"

	"github.com/encodeous/dvbench/apps"
	"github.com/encodeous/dvbench/converge"
	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
)

type JoinPhase int

const (
	AllConnected JoinPhase = iota
	OneIsolated
	ConvergedWithoutIsolated
	Reconnected
	ConvergedWithAll
)

func (p JoinPhase) String() string {
	switch p {
	case AllConnected:
		return "all-connected"
	case OneIsolated:
		return "one-isolated"
	case ConvergedWithoutIsolated:
		return "converged-without-isolated"
	case Reconnected:
		return "reconnected"
	case ConvergedWithAll:
		return "converged-with-all"
	}
	return fmt.Sprintf("JoinPhase(%d)", int(p))
}

// LateJoin cuts a leaf node off, lets the rest of the network converge without it,
// then reconnects it and waits for the whole network to converge.
type LateJoin struct {
	Cfg  state.ScenarioCfg
	Kind apps.ForwarderKind

	phase    JoinPhase
	isolated emu.Host
}

func (s *LateJoin) Name() string { return s.Cfg.Name }

func (s *LateJoin) Phase() JoinPhase { return s.phase }

// Isolated is the node cut off from the network, once one has been chosen
func (s *LateJoin) Isolated() emu.Host { return s.isolated }

func (s *LateJoin) advance(env *Env, to JoinPhase) error {
	if to != s.phase+1 {
		return fmt.Errorf("%w: late join cannot move from %s to %s", state.ErrInvariant, s.phase, to)
	}
	env.Log.Info("late join", "phase", to)
	s.phase = to
	return nil
}

func (s *LateJoin) Run(ctx context.Context, env *Env) error {
	s.phase = AllConnected
	s.isolated = nil
	hosts := env.Net.Hosts()

	leaves := emu.Leaves(hosts)
	if len(leaves) == 0 {
		return fmt.Errorf("%w: no node has exactly one interface", state.ErrPrecondition)
	}
	lazy := leaves[env.Rand.IntN(len(leaves))]
	intf := lazy.Intfs()[0]
	env.Log.Info("disconnecting node", "node", lazy.Name(), "intf", intf.Name())
	if err := intf.SetLoss(ctx, state.IsolationLoss); err != nil {
		return fmt.Errorf("isolate %s: %w", lazy.Name(), err)
	}
	s.isolated = lazy
	env.Defer("restore link of "+lazy.Name(), func(ctx context.Context) error {
		return intf.SetLoss(ctx, state.RestoreLoss)
	})
	if err := s.advance(env, OneIsolated); err != nil {
		return err
	}

	d, err := Provision(ctx, env, s.Kind, hosts)
	if err != nil {
		return err
	}
	others := emu.Without(hosts, lazy)
	if _, err := Converge(ctx, env, s.Cfg, d, "without-isolated", others); err != nil {
		return err
	}
	if err := s.checkIsolation(ctx, env, d, hosts, others); err != nil {
		return err
	}
	if err := s.advance(env, ConvergedWithoutIsolated); err != nil {
		return err
	}

	env.Log.Info("reconnecting node", "node", lazy.Name())
	if err := intf.SetLoss(ctx, state.RestoreLoss); err != nil {
		return fmt.Errorf("reconnect %s: %w", lazy.Name(), err)
	}
	if err := s.advance(env, Reconnected); err != nil {
		return err
	}

	if _, err := Converge(ctx, env, s.Cfg, d, "with-all", hosts); err != nil {
		return err
	}
	return s.advance(env, ConvergedWithAll)
}

// checkIsolation requires the connected nodes to agree while the whole network does not
func (s *LateJoin) checkIsolation(ctx context.Context, env *Env, d *Daemons, hosts, others []emu.Host) error {
	reader, err := Reader(env, s.Cfg, d.Kind)
	if err != nil {
		return err
	}
	network := env.Cfg.Network
	if !converge.IsConverged(ctx, others, converge.Expected(network, emu.Names(others), reader), reader, env.Log) {
		return fmt.Errorf("%w: routing did not converge on the connected nodes", state.ErrInvariant)
	}
	if converge.IsConverged(ctx, hosts, converge.Expected(network, emu.Names(hosts), reader), reader, nil) {
		return fmt.Errorf("%w: routing converged on isolated node %s", state.ErrInvariant, s.isolated.Name())
	}
	return nil
}
