// Package converge decides whether the routing state of an emulated network has converged
package converge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
)

// Destination is the route prefix every other node must know for Node
type Destination struct {
	Node   state.NodeId
	Prefix string
}

func Expected(network string, nodes []state.NodeId, reader RouteReader) []Destination {
	out := make([]Destination, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Destination{Node: n, Prefix: reader.Destination(network, n)})
	}
	return out
}

// lag describes the first gap found in the routing state
type lag struct {
	host string
	dest Destination
	err  error
}

func (l lag) String() string {
	if l.err != nil {
		return fmt.Sprintf("route query on %s failed: %v", l.host, l.err)
	}
	return fmt.Sprintf("%s has no route to %s", l.host, l.dest.Prefix)
}

func (l lag) report(log *slog.Logger) {
	if l.err != nil {
		log.Debug("routing not converged", "node", l.host, "err", l.err)
		return
	}
	log.Debug(fmt.Sprintf("routing not converged on %s for %s", l.host, l.dest.Node))
}

// IsConverged reports whether every host has a route to every expected
// destination other than its own. It stops at the first gap. A failed route
// query counts as not converged.
func IsConverged(ctx context.Context, hosts []emu.Host, expected []Destination, reader RouteReader, log *slog.Logger) bool {
	l := check(ctx, hosts, expected, reader)
	if l == nil {
		return true
	}
	if log != nil {
		l.report(log)
	}
	return false
}

func check(ctx context.Context, hosts []emu.Host, expected []Destination, reader RouteReader) *lag {
	for _, h := range hosts {
		routes, err := reader.Routes(ctx, h)
		if err != nil {
			return &lag{host: h.Name(), err: err}
		}
		for _, d := range expected {
			if string(d.Node) == h.Name() {
				continue
			}
			if !slices.Contains(routes, d.Prefix) {
				return &lag{host: h.Name(), dest: d}
			}
		}
	}
	return nil
}

type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Params struct {
	Deadline time.Duration
	Interval time.Duration
}

// Detector polls hosts until their routing state converges
type Detector struct {
	Network string
	Reader  RouteReader
	Clock   Clock
	Log     *slog.Logger
}

// Await checks for convergence once per interval while less than the deadline
// has elapsed, sleeping before every check. It returns the elapsed time rounded
// to whole seconds. The deadline may be overshot by up to one interval.
func (d *Detector) Await(ctx context.Context, hosts []emu.Host, p Params) (time.Duration, error) {
	if p.Deadline <= 0 || p.Interval <= 0 {
		return 0, fmt.Errorf("%w: convergence deadline and interval must be positive, got %s and %s",
			state.ErrPrecondition, p.Deadline, p.Interval)
	}
	if len(hosts) == 0 {
		return 0, fmt.Errorf("%w: no nodes to await convergence on", state.ErrPrecondition)
	}
	clock := d.Clock
	if clock == nil {
		clock = RealClock{}
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	expected := Expected(d.Network, emu.Names(hosts), d.Reader)

	log.Info("waiting for routing to converge", "nodes", len(hosts), "deadline", p.Deadline)
	start := clock.Now()
	var last *lag
	for clock.Now().Sub(start) < p.Deadline {
		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return 0, fmt.Errorf("await convergence: %w", err)
		}
		last = check(ctx, hosts, expected, d.Reader)
		if last == nil {
			total := clock.Now().Sub(start).Round(time.Second)
			log.Info(fmt.Sprintf("routing converged in %d seconds", int(total.Seconds())))
			return total, nil
		}
		last.report(log)
	}
	if last != nil {
		return 0, fmt.Errorf("%w within %s: %s", state.ErrConvergenceTimeout, p.Deadline, last)
	}
	return 0, fmt.Errorf("%w within %s", state.ErrConvergenceTimeout, p.Deadline)
}
