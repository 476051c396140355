package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/dvbench/core"
	"github.com/encodeous/dvbench/emu"
	"github.com/encodeous/dvbench/state"
	"github.com/encodeous/dvbench/trust"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	metricsOut string
	buildDir   string
	dockerfile string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run scenarios against an emulated network",
	Long: `Starts one container per node, then runs the named scenarios (or all configured scenarios) in order.
The run stops at the first failing scenario and exits non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level, err := core.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		log, closer, err := core.NewLogger(level, cfg.Log.Path, "dvbench")
		if err != nil {
			return err
		}
		defer closer.Close()

		scenarios, err := core.BuildAll(*cfg, args...)
		if err != nil {
			return err
		}
		tool, err := trust.NewNdndKeytool(cfg.Trust.Tool)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if buildDir != "" {
			log.Info("building node image", "image", cfg.Emulator.Image, "context", buildDir)
			if err := emu.BuildImage(ctx, buildDir, dockerfile, cfg.Emulator.Image); err != nil {
				return err
			}
		}

		outcomes, err := run(ctx, cfg, scenarios, tool, log)
		for _, o := range outcomes {
			fmt.Println(o)
		}
		return err
	},
	GroupID: "bench",
}

func run(ctx context.Context, cfg *state.HarnessCfg, scenarios []core.Scenario, tool trust.Keytool, log *slog.Logger) ([]state.Outcome, error) {
	links, err := cfg.Topology.Links()
	if err != nil {
		return nil, err
	}
	nodes := make([]state.NodeId, 0, len(cfg.Topology.Nodes))
	for _, n := range cfg.Topology.Nodes {
		nodes = append(nodes, state.NodeId(n))
	}
	net, err := emu.NewDockerNetwork(ctx, emu.DockerOptions{
		Image:   cfg.Emulator.Image,
		Subnet:  cfg.Emulator.Subnet,
		Home:    cfg.Emulator.Home,
		Sockets: cfg.Forwarder.Sockets,
		Nodes:   nodes,
		Links:   links,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	env := core.NewEnv(core.EnvOptions{
		Cfg:     *cfg,
		Net:     net,
		Keytool: tool,
		Log:     log,
		Metrics: core.NewMetrics(reg),
	})
	outcomes, err := (&core.Runner{Env: env, Scenarios: scenarios}).Run(ctx)
	err = errors.Join(err, env.Close())
	if metricsOut != "" {
		if werr := prometheus.WriteToTextfile(metricsOut, reg); werr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
	}
	return outcomes, err
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write run metrics to this file in the prometheus text format")
	runCmd.Flags().StringVar(&buildDir, "build", "", "Build the node image from this directory before running")
	runCmd.Flags().StringVar(&dockerfile, "dockerfile", "Dockerfile", "Dockerfile used with --build, relative to the build directory")
}
