package main

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/hexwalk/internal/config"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	preset       string
	dt           float64
	horizon      float64
	rate         float64
	dataDir      string
	record       bool
	useTUI       bool
	quiet        bool
	logLevel     string
	logFile      string
	timeout      time.Duration
	frameRate    int
	previewJoint string
	plotJoint    string
	samples      int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hexwalk <ip> <port>",
		Short: "drive a simulated hexapod through a walking gait",
		Long: "hexwalk connects to a robot simulator, lists its motors and force\n" +
			"sensors, then writes interpolated gait targets every simulation step.",
		Args: cobra.ExactArgs(2),
		RunE: runWalk,
	}

	defaults := config.DefaultConfig()
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", defaults.DataDir, "run data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotated file instead of stderr")

	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.Flags().StringVar(&preset, "preset", "", "gait preset (see `hexwalk presets`)")
	rootCmd.Flags().Float64Var(&dt, "dt", defaults.Dt, "simulation step")
	rootCmd.Flags().Float64Var(&horizon, "time", defaults.Horizon, "walk duration in simulation time")
	rootCmd.Flags().Float64Var(&rate, "rate", 0, "keyframes per time unit (0 keeps the preset's)")
	rootCmd.Flags().BoolVar(&record, "record", false, "save telemetry under --data")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live dashboard instead of text output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress per-step output")
	rootCmd.Flags().DurationVar(&timeout, "timeout", defaults.Timeout, "per-call simulator timeout")
	rootCmd.Flags().IntVar(&frameRate, "fps", 30, "dashboard frame rate")

	serveCmd := &cobra.Command{
		Use:   "serve [port]",
		Short: "run the built-in mock simulator",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list gait presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	framesCmd := &cobra.Command{
		Use:   "frames [preset]",
		Short: "print a preset's keyframe table",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printFrames,
	}

	previewCmd := &cobra.Command{
		Use:   "preview [preset]",
		Short: "plot one joint over a gait cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE:  previewGait,
	}
	previewCmd.Flags().StringVar(&previewJoint, "joint", "leg0_knee", "joint to plot (legN_shoulder|knee|ankle)")
	previewCmd.Flags().IntVar(&samples, "samples", 80, "samples across the cycle")
	previewCmd.Flags().Float64Var(&rate, "rate", 0, "keyframes per time unit (0 keeps the preset's)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot recorded joint positions",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotJoint, "joint", "", "plot a single joint by motor name")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a recorded run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(serveCmd, presetsCmd, framesCmd, previewCmd, listCmd, plotCmd, exportCmd)
	return rootCmd
}

func usageError(cmd *cobra.Command, format string, args ...interface{}) error {
	return fmt.Errorf("%s\n\n%s", fmt.Sprintf(format, args...), cmd.UsageString())
}
