package cmd

import (
	"fmt"
	"slices"

	"github.com/encodeous/dvbench/state"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the harness config and prints the topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		links, err := cfg.Topology.Links()
		if err != nil {
			return err
		}
		degree, err := cfg.Topology.Degree()
		if err != nil {
			return err
		}
		var leaves []state.NodeId
		for n, d := range degree {
			if d == 1 {
				leaves = append(leaves, n)
			}
		}
		slices.Sort(leaves)

		fmt.Println("Config is valid")
		fmt.Printf("network %s, %d nodes, %d links\n", cfg.Network, len(cfg.Topology.Nodes), len(links))
		for _, l := range links {
			fmt.Printf("  %s <-> %s\n", l.V1, l.V2)
		}
		if len(leaves) == 0 {
			fmt.Println("no leaf nodes, late-join scenarios will fail")
		} else {
			fmt.Printf("leaf nodes: %v\n", leaves)
		}
		return nil
	},
	GroupID: "bench",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
