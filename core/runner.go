package core

import (
	"context"
	"errors"
	"strings"

	"github.com/encodeous/dvbench/proc"
	"github.com/encodeous/dvbench/state"
)

// Separator is logged after every scenario
var Separator = strings.Repeat("=", 60)

// Runner runs scenarios one after another against one network
type Runner struct {
	Env       *Env
	Scenarios []Scenario
}

// Run executes every scenario in order and stops at the first failure. The network
// is stopped when Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context) ([]state.Outcome, error) {
	env := r.Env
	outcomes, err := r.runAll(ctx)
	stopCtx := context.WithoutCancel(ctx)
	if err != nil {
		env.Log.Error("scenario failed, stopping network", "err", err)
		return outcomes, errors.Join(err, env.Net.Stop(stopCtx))
	}
	env.Log.Info("all scenarios passed", "count", len(outcomes))
	return outcomes, env.Net.Stop(stopCtx)
}

func (r *Runner) runAll(ctx context.Context) (outcomes []state.Outcome, err error) {
	env := r.Env
	defer r.sweep(context.WithoutCancel(ctx))

	for _, sc := range r.Scenarios {
		env.Reseed()
		env.scenario = sc.Name()
		env.Log.Info("running scenario", "name", sc.Name())
		start := env.Clock.Now()
		err := sc.Run(ctx, env)
		elapsed := env.Clock.Now().Sub(start)

		o := state.NewOutcome(sc.Name(), elapsed, err)
		outcomes = append(outcomes, o)
		env.Metrics.Scenarios.WithLabelValues(o.Name, string(o.Status)).Inc()
		env.Metrics.ScenarioSeconds.WithLabelValues(o.Name).Set(elapsed.Seconds())
		if err != nil {
			env.Log.Error(o.String())
			env.Log.Info(Separator)
			return outcomes, err
		}
		env.Log.Info(o.String())
		env.Log.Info(Separator)
		if err := env.Cleanup(ctx); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// sweep force-kills forwarders and routers on every host, in case a scenario leaked them
func (r *Runner) sweep(ctx context.Context) {
	for _, h := range r.Env.Net.Hosts() {
		if err := proc.Kill(ctx, h, "ndnd", "nfd"); err != nil {
			r.Env.Log.Debug("sweep failed", "node", h.Name(), "err", err)
		}
	}
}
