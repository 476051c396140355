//go:build e2e

package e2e

import (
	"context"
	"regexp"
	"testing"

	"github.com/encodeous/dvbench/core"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func StripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// DumpLogsOnFailure logs the tail of every daemon log if the test fails
func DumpLogsOnFailure(t *testing.T, d *core.Daemons) {
	t.Cleanup(func() {
		if !t.Failed() {
			return
		}
		ctx := context.Background()
		for name, f := range d.Forwarders {
			if tail, err := f.Tail(ctx, 50); err == nil {
				t.Logf("[%s:%s]\n%s", name, d.Kind, StripAnsi(tail))
			}
		}
		for name, dv := range d.Routers {
			if tail, err := dv.Tail(ctx, 50); err == nil {
				t.Logf("[%s:dv]\n%s", name, StripAnsi(tail))
			}
		}
	})
}
