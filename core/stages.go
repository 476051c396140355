package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/encodeous/dvbench/apps"
	"github.com/encodeous/dvbench/converge"
	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
)

// Daemons are the forwarders and routers started by a scenario, keyed by host name
type Daemons struct {
	Kind       apps.ForwarderKind
	Forwarders map[string]*apps.Forwarder
	Routers    map[string]*apps.DV
}

// LogTailLines is how much of a router log is shown when routing fails to converge
const LogTailLines = 20

// StartForwarders configures and starts a forwarder on every host. Each forwarder is
// stopped once the scenario succeeds.
func StartForwarders(ctx context.Context, env *Env, kind apps.ForwarderKind, hosts []emu.Host) (map[string]*apps.Forwarder, error) {
	env.Log.Info("starting forwarders", "kind", kind, "nodes", len(hosts))
	for _, h := range hosts {
		if err := apps.RequireBinary(ctx, h, kind.ProcessName()); err != nil {
			return nil, err
		}
	}
	opts := apps.ForwarderOptions{
		Level:   env.Cfg.Forwarder.Level,
		Threads: env.Cfg.Forwarder.Threads,
		Sockets: env.Cfg.Forwarder.Sockets,
		Port:    env.Cfg.Forwarder.Port,
	}
	out := make(map[string]*apps.Forwarder, len(hosts))
	for _, h := range hosts {
		f, err := apps.NewForwarder(ctx, kind, h, opts)
		if err != nil {
			return nil, err
		}
		if err := f.Start(ctx); err != nil {
			return nil, err
		}
		env.Defer("forwarder on "+h.Name(), f.Stop)
		out[h.Name()] = f
	}
	return out, nil
}

// StartRouting lets the forwarders settle, initializes the trust root, then issues
// a credential to and starts a router on every host.
func StartRouting(ctx context.Context, env *Env, hosts []emu.Host) (map[string]*apps.DV, error) {
	for _, h := range hosts {
		if err := apps.RequireBinary(ctx, h, "ndnd"); err != nil {
			return nil, err
		}
	}
	if err := env.Sleep(ctx, env.Cfg.Converge.Settle); err != nil {
		return nil, err
	}
	network := env.Cfg.Network
	anchor, err := env.Trust.InitRoot(ctx, network)
	if err != nil {
		return nil, err
	}
	env.Log.Info("starting routers", "nodes", len(hosts))
	out := make(map[string]*apps.DV, len(hosts))
	for _, h := range hosts {
		cred, err := env.Trust.IssueNodeCredential(ctx, h, network, env.Cfg.Trust.Suffix)
		if err != nil {
			return nil, err
		}
		dv, err := apps.NewDV(ctx, h, apps.DVOptions{
			Network:    network,
			Port:       env.Cfg.Forwarder.Port,
			Anchor:     anchor,
			Credential: cred,
		})
		if err != nil {
			return nil, err
		}
		if err := dv.Start(ctx); err != nil {
			return nil, err
		}
		env.Defer("router on "+h.Name(), dv.Stop)
		out[h.Name()] = dv
	}
	return out, nil
}

// Provision starts a forwarder of the given kind and a router on every host
func Provision(ctx context.Context, env *Env, kind apps.ForwarderKind, hosts []emu.Host) (*Daemons, error) {
	fws, err := StartForwarders(ctx, env, kind, hosts)
	if err != nil {
		return nil, err
	}
	dvs, err := StartRouting(ctx, env, hosts)
	if err != nil {
		return nil, err
	}
	return &Daemons{Kind: kind, Forwarders: fws, Routers: dvs}, nil
}

// Reader returns the route reader a scenario queries its forwarders with
func Reader(env *Env, sc state.ScenarioCfg, kind apps.ForwarderKind) (converge.RouteReader, error) {
	return converge.NewReader(sc.Routes, kind.RouteCommand(), env.Cfg.Trust.Suffix)
}

// Detector builds a convergence detector bound to env
func Detector(env *Env, reader converge.RouteReader) *converge.Detector {
	return &converge.Detector{
		Network: env.Cfg.Network,
		Reader:  reader,
		Clock:   env.Clock,
		Log:     env.Log,
	}
}

// Converge waits until every host has a route to every other host. On timeout the
// tail of each router log is logged before the error is returned.
func Converge(ctx context.Context, env *Env, sc state.ScenarioCfg, d *Daemons, stage string, hosts []emu.Host) (time.Duration, error) {
	reader, err := Reader(env, sc, d.Kind)
	if err != nil {
		return 0, err
	}
	det := Detector(env, reader)
	det.Log = env.Log.With("stage", stage)
	elapsed, err := det.Await(ctx, hosts, converge.Params{
		Deadline: env.Cfg.DeadlineFor(sc),
		Interval: env.Cfg.Converge.Interval,
	})
	if errors.Is(err, state.ErrConvergenceTimeout) {
		dumpRouterLogs(ctx, env, d, hosts)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", stage, err)
	}
	env.Metrics.ConvergenceSeconds.WithLabelValues(env.Scenario(), stage).Set(elapsed.Seconds())
	return elapsed, nil
}

func dumpRouterLogs(ctx context.Context, env *Env, d *Daemons, hosts []emu.Host) {
	for _, h := range hosts {
		dv, ok := d.Routers[h.Name()]
		if !ok {
			continue
		}
		tail, err := dv.Tail(ctx, LogTailLines)
		if err != nil {
			env.Log.Warn("cannot read router log", "node", h.Name(), "err", err)
			continue
		}
		env.Log.Warn("router log", "node", h.Name(), "tail", tail)
	}
}
