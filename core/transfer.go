package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/proc"
	"github.com/encodeous/dvbench/state"
	"go.step.sm/crypto/randutil"
	"golang.org/x/crypto/blake2b"
)

const (
	recvFile = "recv.test.bin"
	catLog   = "cat.log"
	putLog   = "put.log"
)

// Sample picks n distinct hosts. The choice depends only on the state of r and the
// order of hosts.
func Sample(r *rand.Rand, hosts []emu.Host, n int) []emu.Host {
	n = min(n, len(hosts))
	out := make([]emu.Host, 0, n)
	for _, i := range r.Perm(len(hosts))[:n] {
		out = append(out, hosts[i])
	}
	return out
}

// ContentName is the name a publisher exposes the payload under, e.g. /minindn/a/test
func ContentName(network string, node state.NodeId, leaf string) string {
	return state.Identity(network, node) + "/" + leaf
}

func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// TransferFiles has a sample of hosts publish a random payload, then has another
// sample fetch it from a randomly chosen publisher and compares the bytes.
func TransferFiles(ctx context.Context, env *Env, hosts []emu.Host) error {
	cfg := env.Cfg.Transfer
	if len(hosts) < 2 {
		return fmt.Errorf("%w: file transfer needs at least two nodes, got %d", state.ErrPrecondition, len(hosts))
	}
	n := min(cfg.Sample, len(hosts)-1)
	publishers := Sample(env.Rand, hosts, n)
	fetchers := Sample(env.Rand, hosts, n)

	payload, err := randutil.Salt(cfg.Size)
	if err != nil {
		return fmt.Errorf("generate payload: %w", err)
	}
	env.Log.Info("publishing payload", "publishers", emu.Names(publishers), "size", len(payload), "digest", digest(payload))
	for _, h := range publishers {
		if _, err := publish(ctx, env, h, payload); err != nil {
			return err
		}
	}

	// the whole payload has to be segmented and signed before it can be served
	if err := env.Sleep(ctx, cfg.Grace); err != nil {
		return err
	}

	for _, h := range fetchers {
		pub := publishers[env.Rand.IntN(len(publishers))]
		name := ContentName(env.Cfg.Network, state.NodeId(pub.Name()), cfg.Name)
		if err := fetch(ctx, env, h, name, payload); err != nil {
			if errors.Is(err, state.ErrDataMismatch) {
				env.Metrics.Fetches.WithLabelValues(env.Scenario(), "mismatch").Inc()
			}
			return err
		}
		env.Metrics.Fetches.WithLabelValues(env.Scenario(), "ok").Inc()
		env.Log.Info("fetched payload", "node", h.Name(), "name", name)
	}
	return nil
}

// publish exposes payload under the content name of h until the scenario is cleaned up
func publish(ctx context.Context, env *Env, h emu.Host, payload []byte) (string, error) {
	cfg := env.Cfg.Transfer
	if err := h.WriteFile(ctx, cfg.Path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write payload on %s: %w", h.Name(), err)
	}
	name := ContentName(env.Cfg.Network, state.NodeId(h.Name()), cfg.Name)
	p, err := proc.Start(ctx, h, proc.Spec{
		Command: "ndnd put --expose " + proc.Quote(name),
		LogFile: putLog,
		Stdin:   cfg.Path,
	})
	if err != nil {
		return "", err
	}
	env.Defer("publisher on "+h.Name(), p.Stop)
	return name, nil
}

func fetch(ctx context.Context, env *Env, h emu.Host, name string, want []byte) error {
	home := h.HomeDir()
	cmd := fmt.Sprintf("cd %s && ndnd cat %s > %s 2> %s",
		proc.Quote(home), proc.Quote(name), proc.Quote(recvFile), proc.Quote(catLog))
	if _, err := h.Cmd(ctx, cmd); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("fetch %s on %s: %w", name, h.Name(), cerr)
		}
		// a failed fetch leaves a short or empty file, reported as a mismatch below
		env.Log.Debug("fetch exited with an error", "node", h.Name(), "err", err)
	}
	got, err := h.ReadFile(ctx, path.Join(home, recvFile))
	if err == nil && bytes.Equal(got, want) {
		return nil
	}
	if diag, lerr := h.ReadFile(ctx, path.Join(home, catLog)); lerr == nil {
		env.Log.Error("fetch output", "node", h.Name(), "name", name, "log", string(diag))
	} else {
		env.Log.Error("fetch output unavailable", "node", h.Name(), "err", lerr)
	}
	if err != nil {
		return fmt.Errorf("%w: %s fetched nothing from %s: %v", state.ErrDataMismatch, h.Name(), name, err)
	}
	return fmt.Errorf("%w: %s fetched %d bytes (blake2b %s) from %s, want %d bytes (blake2b %s)",
		state.ErrDataMismatch, h.Name(), len(got), digest(got), name, len(want), digest(want))
}
