package converge

import (
	"testing"

	"github.com/encodeous/dvbench/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoutes(t *testing.T) {
	out := `prefix=/localhost/nfd nexthop=1 origin=app cost=0 flags={ChildInherit} expires=never
prefix=/minindn/b nexthop=257 origin=dv cost=1 flags={} expires=never

  /minindn/c route={faceid=262 (origin=128 cost=2 ChildInherit)}
Routes:
nexthop=300 prefix=/minindn/d/32=DV origin=nlsr cost=3 flags=capture expires=never
`
	assert.Equal(t, []string{
		"/localhost/nfd",
		"/minindn/b",
		"/minindn/c",
		"/minindn/d/32=DV",
	}, ParseRoutes(out))
	assert.Empty(t, ParseRoutes(""))
}

func TestNewReader(t *testing.T) {
	r, err := NewReader(state.RoutesPlain, "ndnd fw route-list", "32=DV")
	require.NoError(t, err)
	assert.Equal(t, PlainRoutes{Command: "ndnd fw route-list"}, r)
	assert.Equal(t, "/minindn/a", r.Destination("/minindn", "a"))

	r, err = NewReader(state.RoutesSuffixed, "nfdc route list", "32=DV")
	require.NoError(t, err)
	assert.Equal(t, SuffixedRoutes{Command: "nfdc route list", Suffix: "32=DV"}, r)
	assert.Equal(t, "/minindn/a/32=DV", r.Destination("/minindn", "a"))

	_, err = NewReader("json", "", "")
	assert.ErrorIs(t, err, state.ErrPrecondition)
}
