// Package apps configures and launches the per-node daemons: a forwarder
// (NDNd or NFD) and the ndn-dv router.
package apps

import (
	"context"
	"fmt"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/proc"
	"github.com/encodeous/dvbench/state"
)

// RequireBinary fails with a precondition error when bin is not on the PATH of host
func RequireBinary(ctx context.Context, host emu.Host, bin string) error {
	if _, err := host.Cmd(ctx, "command -v "+proc.Quote(bin)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s not found in PATH on %s, did you install it?", state.ErrPrecondition, bin, host.Name())
	}
	return nil
}

// Daemon is a configured process that can be started once and stopped
type Daemon struct {
	Host emu.Host
	Spec proc.Spec
	Proc *proc.Process
}

func (d *Daemon) Start(ctx context.Context) error {
	if d.Proc != nil {
		return fmt.Errorf("%s already started on %s", d.Spec.Command, d.Host.Name())
	}
	p, err := proc.Start(ctx, d.Host, d.Spec)
	if err != nil {
		return err
	}
	d.Proc = p
	return nil
}

// Stop is a no-op for a daemon that was never started
func (d *Daemon) Stop(ctx context.Context) error {
	if d.Proc == nil {
		return nil
	}
	return d.Proc.Stop(ctx)
}

// Tail returns the last n lines of the daemon log
func (d *Daemon) Tail(ctx context.Context, n int) (string, error) {
	if d.Proc == nil {
		return "", fmt.Errorf("%s was never started on %s", d.Spec.Command, d.Host.Name())
	}
	return d.Proc.Tail(ctx, n)
}
