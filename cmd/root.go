package cmd

import (
	"os"

	"github.com/encodeous/dvbench/state"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvbench",
	Short: "End-to-end harness for the ndn-dv routing daemon",
	Long: `dvbench emulates a network of containers, runs a forwarder and the ndn-dv router on every node,
waits for routing to converge and then exercises the data plane and fault recovery.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "bench",
		Title: "Benchmark Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "harness config (yaml), defaults are used if empty")
}

// loadConfig reads and validates the harness config
func loadConfig() (*state.HarnessCfg, error) {
	return state.LoadHarnessConfig(configPath)
}
