package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// scenariosCmd lists the configured scenarios
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List configured scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, sc := range cfg.Scenarios {
			fmt.Printf("%-24s kind=%s forwarder=%s routes=%s deadline=%s\n",
				sc.Name, sc.Kind, sc.Forwarder, sc.Routes, cfg.DeadlineFor(sc))
		}
		return nil
	},
	GroupID: "bench",
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
