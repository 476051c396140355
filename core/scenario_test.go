package core

import (
	"context"
	"testing"
	"time"

	"github.com/encodeous/dvbench/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	s, err := Build(state.ScenarioCfg{Name: "ft", Kind: state.KindFileTransfer, Forwarder: "nfd", Routes: state.RoutesPlain})
	require.NoError(t, err)
	require.IsType(t, &FileTransfer{}, s)
	assert.Equal(t, "ft", s.Name())
	assert.Equal(t, "nfd", string(s.(*FileTransfer).Kind))

	s, err = Build(state.ScenarioCfg{Name: "lj", Kind: state.KindLateJoin, Forwarder: "ndnd"})
	require.NoError(t, err)
	assert.IsType(t, &LateJoin{}, s)

	_, err = Build(state.ScenarioCfg{Name: "x", Kind: "chaos", Forwarder: "ndnd"})
	assert.ErrorContains(t, err, `unknown kind "chaos"`)
	_, err = Build(state.ScenarioCfg{Name: "x", Kind: state.KindFileTransfer, Forwarder: "yanfd"})
	assert.Error(t, err)
}

func TestBuildAll(t *testing.T) {
	cfg := state.DefaultHarnessConfig()
	all, err := BuildAll(cfg)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "file-transfer-ndnd", all[0].Name())

	some, err := BuildAll(cfg, "late-join", "file-transfer-nfd")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "late-join", some[0].Name())
	assert.Equal(t, "file-transfer-nfd", some[1].Name())

	_, err = BuildAll(cfg, "nope")
	assert.ErrorContains(t, err, `unknown scenario "nope"`)
}

func TestFileTransfer(t *testing.T) {
	fwCmd := map[string]string{
		state.ForwarderNDNd: "ndnd fw run",
		state.ForwarderNFD:  "nfd --config",
	}
	for _, sc := range state.DefaultScenarios()[:2] {
		t.Run(sc.Name, func(t *testing.T) {
			ctx := context.Background()
			te := newTestEnv(t, newStar())
			s, err := Build(sc)
			require.NoError(t, err)

			require.NoError(t, s.Run(ctx, te.Env))
			assert.Equal(t, 32*time.Second, te.clock.Elapsed())
			for _, name := range []string{"a", "b", "c", "d"} {
				h := te.net.Host(name)
				assert.Equal(t, 1, h.Running(fwCmd[sc.Forwarder]), name)
				assert.Equal(t, 1, h.Running("ndnd dv run"), name)
			}
			require.NoError(t, te.Cleanup(ctx))
			assert.Zero(t, countRunning(te, ""))
		})
	}
}

func TestFileTransfer_SuffixedRoutes(t *testing.T) {
	ctx := context.Background()
	te := newTestEnv(t, newStar())
	te.net.Suffix = state.DefaultRoleSuffix
	s, err := Build(state.ScenarioCfg{Name: "ft", Kind: state.KindFileTransfer, Forwarder: "ndnd", Routes: state.RoutesSuffixed})
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx, te.Env))
	require.NoError(t, te.Cleanup(ctx))
}

func TestFileTransfer_ConvergenceTimeout(t *testing.T) {
	ctx := context.Background()
	te := newTestEnv(t, newStar())
	require.NoError(t, te.net.Host("d").Intfs()[0].SetLoss(ctx, state.IsolationLoss))
	s, err := Build(state.DefaultScenarios()[0])
	require.NoError(t, err)

	err = s.Run(ctx, te.Env)
	require.ErrorIs(t, err, state.ErrConvergenceTimeout)
	assert.ErrorContains(t, err, "all: routing did not converge within 30s")
	assert.Contains(t, te.logs.String(), "router log")
	assert.Contains(t, te.logs.String(), "ndnd dv run")
	// settle plus at most one interval past the deadline
	assert.Equal(t, 31*time.Second, te.clock.Elapsed())
}

func TestFileTransfer_MissingForwarder(t *testing.T) {
	ctx := context.Background()
	te := newTestEnv(t, newStar())
	te.net.Missing["nfd"] = true
	s, err := Build(state.DefaultScenarios()[1])
	require.NoError(t, err)

	err = s.Run(ctx, te.Env)
	require.ErrorIs(t, err, state.ErrPrecondition)
	assert.ErrorContains(t, err, "nfd not found in PATH")
	assert.Zero(t, countRunning(te, ""))
	assert.Zero(t, te.Pending())
	assert.Empty(t, te.keys.Keygens)
}

func TestFileTransfer_MissingRouter(t *testing.T) {
	ctx := context.Background()
	te := newTestEnv(t, newStar())
	te.net.Missing["ndnd"] = true
	s, err := Build(state.DefaultScenarios()[1])
	require.NoError(t, err)

	// forwarders start, but no credential is issued without the router binary
	err = s.Run(ctx, te.Env)
	require.ErrorIs(t, err, state.ErrPrecondition)
	assert.Equal(t, 4, countRunning(te, "nfd"))
	assert.Empty(t, te.keys.Keygens)
	require.NoError(t, te.Cleanup(ctx))
}
