package apps

import (
	"context"
	"io/fs"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/encodeous/dvbench/mock"
	"github.com/encodeous/dvbench/state"
	"github.com/encodeous/dvbench/trust"
	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrust(t *testing.T, n *mock.Network) (*trust.Anchor, map[string]*trust.Credential) {
	t.Helper()
	ctx := context.Background()
	b := trust.NewBootstrapper(&mock.Keytool{}, trust.Options{
		Root: filepath.Join(t.TempDir(), "mn-dv-root"),
		Algo: "ed25519",
		Keys: "dv-keys",
	})
	t.Cleanup(func() { _ = b.Close() })
	a, err := b.InitRoot(ctx, "/minindn")
	require.NoError(t, err)
	creds := make(map[string]*trust.Credential)
	for _, h := range n.Hosts() {
		c, err := b.IssueNodeCredential(ctx, h, "/minindn", state.DefaultRoleSuffix)
		require.NoError(t, err)
		creds[h.Name()] = c
	}
	return a, creds
}

func TestNeighborURI(t *testing.T) {
	assert.Equal(t, "udp4://10.0.0.3:6363", NeighborURI(netip.MustParseAddr("10.0.0.3"), 6363))
}

func TestNewDV(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork()
	anchor, creds := newTestTrust(t, n)
	h := n.Host("b")

	d, err := NewDV(ctx, h, DVOptions{
		Network:    "/minindn",
		Port:       6363,
		Anchor:     anchor,
		Credential: creds["b"],
	})
	require.NoError(t, err)
	assert.Equal(t, "/minindn/b", d.Router)

	data, err := h.ReadFile(ctx, "/tmp/minindn/b/dv.config.yml")
	require.NoError(t, err)
	var got dvConfig
	require.NoError(t, yaml.Unmarshal(data, &got))
	want := dvConfig{DV: dvSection{
		Network:      "/minindn",
		Router:       "/minindn/b",
		Keychain:     "dir:///tmp/minindn/b/dv-keys",
		TrustAnchors: []string{anchor.Name},
		Neighbors: []neighbor{
			{URI: "udp4://10.0.0.2:6363"},
			{URI: "udp4://10.0.0.11:6363"},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dv config mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, d.Start(ctx))
	assert.Equal(t, 1, h.Running("ndnd dv run"))
	require.NoError(t, d.Stop(ctx))
	assert.Zero(t, h.Running("ndnd dv run"))
}

func TestNewDV_Preconditions(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork()
	anchor, creds := newTestTrust(t, n)
	h := n.Host("a")

	_, err := NewDV(ctx, h, DVOptions{Network: "/minindn", Port: 6363, Credential: creds["a"]})
	assert.ErrorIs(t, err, state.ErrPrecondition)
	assert.ErrorContains(t, err, "trust root not initialized")

	_, err = NewDV(ctx, h, DVOptions{Network: "/minindn", Port: 6363, Anchor: anchor})
	assert.ErrorIs(t, err, state.ErrPrecondition)

	_, err = NewDV(ctx, h, DVOptions{Network: "/minindn", Port: 6363, Anchor: anchor, Credential: creds["c"]})
	assert.ErrorIs(t, err, state.ErrPrecondition)
	assert.ErrorContains(t, err, "no credential issued for a")

	n.Missing["ndnd"] = true
	_, err = NewDV(ctx, h, DVOptions{Network: "/minindn", Port: 6363, Anchor: anchor, Credential: creds["a"]})
	assert.ErrorIs(t, err, state.ErrPrecondition)
	_, err = h.ReadFile(ctx, "/tmp/minindn/a/dv.config.yml")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
