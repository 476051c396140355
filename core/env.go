// Package core orchestrates scenarios against an emulated network: it provisions
// forwarders and routers, waits for routing to converge, exercises the data plane
// and injects faults.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/encodeous/dvbench/converge"
	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
	"github.com/encodeous/dvbench/trust"
)

// Cleanup undoes a scenario-local side effect
type Cleanup func(ctx context.Context) error

type cleanup struct {
	name string
	fn   Cleanup
}

// Env is shared by every scenario of a run. It is not safe for concurrent use.
type Env struct {
	Cfg     state.HarnessCfg
	Net     emu.Network
	Trust   *trust.Bootstrapper
	Clock   converge.Clock
	Log     *slog.Logger
	Metrics *Metrics
	// Rand is reseeded before every scenario
	Rand *rand.Rand

	scenario string
	cleanups []cleanup
}

type EnvOptions struct {
	Cfg     state.HarnessCfg
	Net     emu.Network
	Keytool trust.Keytool
	Clock   converge.Clock
	Log     *slog.Logger
	Metrics *Metrics
}

func NewEnv(opts EnvOptions) *Env {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = converge.RealClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	e := &Env{
		Cfg:     opts.Cfg,
		Net:     opts.Net,
		Clock:   opts.Clock,
		Log:     opts.Log,
		Metrics: opts.Metrics,
		Trust: trust.NewBootstrapper(opts.Keytool, trust.Options{
			Root: opts.Cfg.Trust.Root,
			Algo: opts.Cfg.Trust.Algo,
			Keys: opts.Cfg.Trust.Keys,
			Log:  opts.Log,
		}),
	}
	e.Reseed()
	return e
}

// Reseed resets Rand to the configured seed
func (e *Env) Reseed() {
	e.Rand = rand.New(rand.NewPCG(e.Cfg.Seed, e.Cfg.Seed))
}

// Defer registers a cleanup to run after the current scenario succeeds
func (e *Env) Defer(name string, fn Cleanup) {
	e.cleanups = append(e.cleanups, cleanup{name, fn})
}

// Cleanup runs the registered cleanups in reverse registration order. Every cleanup
// runs even if an earlier one fails.
func (e *Env) Cleanup(ctx context.Context) error {
	var errs []error
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		c := e.cleanups[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", c.name, err))
		}
	}
	e.cleanups = nil
	return errors.Join(errs...)
}

// Pending is the number of registered cleanups
func (e *Env) Pending() int {
	return len(e.cleanups)
}

func (e *Env) Sleep(ctx context.Context, d time.Duration) error {
	return e.Clock.Sleep(ctx, d)
}

// Scenario is the name of the scenario being run
func (e *Env) Scenario() string {
	return e.scenario
}

// Close releases the trust anchor. The network is owned by the caller.
func (e *Env) Close() error {
	return e.Trust.Close()
}
