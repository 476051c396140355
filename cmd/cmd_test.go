package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() { configPath = "" })
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestExampleConfig(t *testing.T) {
	example := filepath.Join("..", "dvbench.example.yaml")
	require.NoError(t, execute(t, "verify", "-c", example))
	require.NoError(t, execute(t, "scenarios", "-c", example))
}

func TestVerify_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("topology:\n  nodes: [a]\n"), 0o600))
	err := execute(t, "verify", "-c", p)
	assert.ErrorContains(t, err, "validate config")
}

func TestRun_UnknownScenario(t *testing.T) {
	err := execute(t, "run", "-c", filepath.Join("..", "dvbench.example.yaml"), "no-such-scenario")
	assert.ErrorContains(t, err, `unknown scenario "no-such-scenario"`)
}
