package converge

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
)

// RouteReader queries the routing table of a host and knows under which
// destination name each router is announced.
type RouteReader interface {
	Destination(network string, node state.NodeId) string
	Routes(ctx context.Context, host emu.Host) ([]string, error)
}

// PlainRoutes expects routers to be announced under {network}/{node}
type PlainRoutes struct {
	Command string
}

// SuffixedRoutes expects routers to be announced under {network}/{node}/{suffix}
type SuffixedRoutes struct {
	Command string
	Suffix  string
}

func (r PlainRoutes) Destination(network string, node state.NodeId) string {
	return state.Identity(network, node)
}

func (r PlainRoutes) Routes(ctx context.Context, host emu.Host) ([]string, error) {
	return queryRoutes(ctx, host, r.Command)
}

func (r SuffixedRoutes) Destination(network string, node state.NodeId) string {
	return state.RoleName(network, node, r.Suffix)
}

func (r SuffixedRoutes) Routes(ctx context.Context, host emu.Host) ([]string, error) {
	return queryRoutes(ctx, host, r.Command)
}

// NewReader selects the reader for a route format
func NewReader(format, command, suffix string) (RouteReader, error) {
	switch format {
	case state.RoutesPlain:
		return PlainRoutes{Command: command}, nil
	case state.RoutesSuffixed:
		return SuffixedRoutes{Command: command, Suffix: suffix}, nil
	}
	return nil, fmt.Errorf("%w: unknown route format %q", state.ErrPrecondition, format)
}

func queryRoutes(ctx context.Context, host emu.Host, command string) ([]string, error) {
	out, err := host.Cmd(ctx, command)
	if err != nil {
		return nil, err
	}
	return ParseRoutes(out), nil
}

// ParseRoutes extracts route prefixes from a route listing. Lines either carry a
// prefix=NAME field, as printed by `ndnd fw route-list` and `nfdc route list`, or
// start with the name itself.
func ParseRoutes(out string) []string {
	var routes []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		found := false
		for _, f := range fields {
			if name, ok := strings.CutPrefix(f, "prefix="); ok {
				routes = append(routes, name)
				found = true
				break
			}
		}
		if !found && strings.HasPrefix(fields[0], "/") {
			routes = append(routes, fields[0])
		}
	}
	return routes
}
