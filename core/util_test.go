package core

import "strings"

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

func countRunning(te *testEnv, prefix string) int {
	c := 0
	for _, name := range []string{"a", "b", "c", "d"} {
		if h := te.net.Host(name); h != nil {
			c += h.Running(prefix)
		}
	}
	return c
}
