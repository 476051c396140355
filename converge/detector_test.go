package converge

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/mock"
	"github.com/encodeous/dvbench/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const network = "/minindn"

var ndndRoutes = PlainRoutes{Command: "ndnd fw route-list"}

// star: a is the hub, b and c are leaves, a-d-e is a chain
func newStar(t *testing.T) *mock.Network {
	t.Helper()
	n, err := mock.FromTopology(network, state.TopologyCfg{
		Nodes: []string{"a", "b", "c", "d", "e"},
		Graph: []string{"a, b", "a, c", "a, d", "d, e"},
	})
	require.NoError(t, err)
	return n
}

func TestExpected(t *testing.T) {
	assert.Equal(t, []Destination{
		{Node: "a", Prefix: "/minindn/a/32=DV"},
		{Node: "b", Prefix: "/minindn/b/32=DV"},
	}, Expected(network, []state.NodeId{"a", "b"}, SuffixedRoutes{Suffix: "32=DV"}))
}

func TestIsConverged(t *testing.T) {
	ctx := context.Background()
	n := newStar(t)
	hosts := n.Hosts()
	exp := Expected(network, emu.Names(hosts), ndndRoutes)

	assert.False(t, IsConverged(ctx, hosts, exp, ndndRoutes, slog.Default()), "no forwarders are running")

	n.Boot(state.ForwarderNDNd)
	assert.True(t, IsConverged(ctx, hosts, exp, ndndRoutes, slog.Default()))
	// same snapshot, same answer
	assert.True(t, IsConverged(ctx, hosts, exp, ndndRoutes, nil))

	// the nfd route query fails against an ndnd forwarder
	nfdRoutes := PlainRoutes{Command: "nfdc route list"}
	assert.False(t, IsConverged(ctx, hosts, exp, nfdRoutes, nil))
}

func TestIsConverged_Partial(t *testing.T) {
	ctx := context.Background()
	n := newStar(t)
	n.Boot(state.ForwarderNDNd, "a", "b", "c", "d")
	hosts := n.Hosts()
	all := Expected(network, emu.Names(hosts), ndndRoutes)
	assert.False(t, IsConverged(ctx, hosts, all, ndndRoutes, nil))

	e, _ := emu.Find(hosts, "e")
	others := emu.Without(hosts, e)
	assert.True(t, IsConverged(ctx, others, Expected(network, emu.Names(others), ndndRoutes), ndndRoutes, nil))
}

func TestIsConverged_Isolation(t *testing.T) {
	ctx := context.Background()
	n := newStar(t)
	n.Boot(state.ForwarderNDNd)
	hosts := n.Hosts()

	leaves := emu.Leaves(hosts)
	require.Equal(t, []state.NodeId{"b", "c", "e"}, emu.Names(leaves))
	leaf := leaves[0]
	require.NoError(t, leaf.Intfs()[0].SetLoss(ctx, state.IsolationLoss))

	others := emu.Without(hosts, leaf)
	assert.False(t, IsConverged(ctx, hosts, Expected(network, emu.Names(hosts), ndndRoutes), ndndRoutes, nil))
	assert.True(t, IsConverged(ctx, others, Expected(network, emu.Names(others), ndndRoutes), ndndRoutes, nil))

	require.NoError(t, leaf.Intfs()[0].SetLoss(ctx, state.RestoreLoss))
	assert.True(t, IsConverged(ctx, hosts, Expected(network, emu.Names(hosts), ndndRoutes), ndndRoutes, nil))
}

func TestIsConverged_FormatEquivalence(t *testing.T) {
	ctx := context.Background()
	for _, partial := range []bool{false, true} {
		plainNet, suffixNet := newStar(t), newStar(t)
		suffixNet.Suffix = state.DefaultRoleSuffix
		for _, n := range []*mock.Network{plainNet, suffixNet} {
			if partial {
				n.Boot(state.ForwarderNFD, "a", "b", "d")
			} else {
				n.Boot(state.ForwarderNFD)
			}
		}
		plain := PlainRoutes{Command: "nfdc route list"}
		suffixed := SuffixedRoutes{Command: "nfdc route list", Suffix: state.DefaultRoleSuffix}

		ph, sh := plainNet.Hosts(), suffixNet.Hosts()
		assert.Equal(t,
			IsConverged(ctx, ph, Expected(network, emu.Names(ph), plain), plain, nil),
			IsConverged(ctx, sh, Expected(network, emu.Names(sh), suffixed), suffixed, nil),
			"partial=%v", partial)
		// the wrong convention never matches
		assert.False(t, IsConverged(ctx, sh, Expected(network, emu.Names(sh), plain), plain, nil))
	}
}

func TestAwait(t *testing.T) {
	n := newStar(t)
	n.Boot(state.ForwarderNDNd, "a", "b", "c", "d")
	clock := mock.NewClock()
	clock.OnSleep = func(elapsed time.Duration) {
		if elapsed == 4*time.Second {
			n.Boot(state.ForwarderNDNd, "e")
		}
	}
	d := &Detector{Network: network, Reader: ndndRoutes, Clock: clock}
	elapsed, err := d.Await(context.Background(), n.Hosts(), Params{Deadline: 30 * time.Second, Interval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, elapsed)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, clock.Slept())
}

func TestAwait_Rounds(t *testing.T) {
	n := newStar(t)
	n.Boot(state.ForwarderNDNd)
	d := &Detector{Network: network, Reader: ndndRoutes, Clock: mock.NewClock()}
	elapsed, err := d.Await(context.Background(), n.Hosts(), Params{Deadline: 30 * time.Second, Interval: 1500 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, elapsed)
}

func TestAwait_TimeoutBoundary(t *testing.T) {
	cases := []struct {
		deadline, interval, waited time.Duration
	}{
		{5 * time.Second, time.Second, 5 * time.Second},
		{5 * time.Second, 2 * time.Second, 6 * time.Second},
		{time.Second, 10 * time.Second, 10 * time.Second},
	}
	for _, c := range cases {
		n := newStar(t)
		n.Boot(state.ForwarderNDNd, "a", "b")
		clock := mock.NewClock()
		d := &Detector{Network: network, Reader: ndndRoutes, Clock: clock}
		_, err := d.Await(context.Background(), n.Hosts(), Params{Deadline: c.deadline, Interval: c.interval})
		assert.ErrorIs(t, err, state.ErrConvergenceTimeout)
		assert.ErrorContains(t, err, "a has no route to /minindn/c")
		assert.Equal(t, c.waited, clock.Elapsed())
		assert.GreaterOrEqual(t, clock.Elapsed(), c.deadline)
		assert.LessOrEqual(t, clock.Elapsed(), c.deadline+c.interval)
	}
}

func TestAwait_MissingRoute(t *testing.T) {
	n := newStar(t)
	n.Boot(state.ForwarderNDNd)
	hosts := n.Hosts()
	require.NoError(t, n.Host("e").Intfs()[0].SetLoss(context.Background(), state.IsolationLoss))
	d := &Detector{Network: network, Reader: ndndRoutes, Clock: mock.NewClock()}
	_, err := d.Await(context.Background(), hosts, Params{Deadline: 3 * time.Second, Interval: time.Second})
	assert.ErrorIs(t, err, state.ErrConvergenceTimeout)
	assert.ErrorContains(t, err, "a has no route to /minindn/e")
}

func TestAwait_InvalidParams(t *testing.T) {
	n := newStar(t)
	d := &Detector{Network: network, Reader: ndndRoutes, Clock: mock.NewClock()}
	for _, p := range []Params{{0, time.Second}, {time.Second, 0}, {-time.Second, time.Second}} {
		_, err := d.Await(context.Background(), n.Hosts(), p)
		assert.ErrorIs(t, err, state.ErrPrecondition)
	}
	_, err := d.Await(context.Background(), nil, Params{time.Second, time.Second})
	assert.ErrorIs(t, err, state.ErrPrecondition)
}

func TestAwait_Cancelled(t *testing.T) {
	n := newStar(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Detector{Network: network, Reader: ndndRoutes, Clock: mock.NewClock()}
	_, err := d.Await(ctx, n.Hosts(), Params{time.Minute, time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRealClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealClock{}.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, RealClock{}.Sleep(context.Background(), time.Millisecond))
}
