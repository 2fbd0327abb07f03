package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/san-kum/hexwalk/internal/config"
	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/logging"
	"github.com/san-kum/hexwalk/internal/metrics"
	"github.com/san-kum/hexwalk/internal/simclient"
	"github.com/san-kum/hexwalk/internal/storage"
	"github.com/san-kum/hexwalk/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// resolveConfig layers the walk settings: defaults, then --preset, then
// the config file, then any flag the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg.Gait = config.GaitConfig{Preset: preset}
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Horizon = horizon
	}
	if flags.Changed("rate") {
		cfg.Gait.Rate = rate
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("record") {
		cfg.Record = record
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func gaitName(g config.GaitConfig) string {
	switch {
	case len(g.Keyframes) > 0:
		return "keyframes"
	case g.Oscillator != nil:
		return "oscillator"
	}
	return g.Preset
}

func runWalk(cmd *cobra.Command, args []string) error {
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		return usageError(cmd, "invalid port %q", args[1])
	}
	cmd.SilenceUsage = true

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	pattern, err := cfg.Gait.Pattern()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logging.Close(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if useTUI {
		out = io.Discard
	}

	fmt.Fprintf(out, "Connecting to simulator %s:%d\n", host, port)
	client, err := simclient.Dial(ctx, host, port, simclient.Options{Timeout: cfg.Timeout, Logger: log})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nExiting...")
			return nil
		}
		log.WithError(err).WithField("kind", simclient.KindOf(err)).Error("connect failed")
		return err
	}
	if err := driver.DescribeInitial(out, client); err != nil {
		client.Close()
		return err
	}

	d := driver.New(client, pattern, cfg.Driver())
	d.SetLogger(log)
	for _, m := range metrics.All() {
		d.AddMetric(m)
	}

	var rec *storage.Recorder
	if cfg.Record {
		rec = storage.NewRecorder()
		d.AddObserver(rec)
	}

	var res *driver.Result
	if useTUI {
		title := fmt.Sprintf("%s @ %s", gaitName(cfg.Gait), client.Addr())
		res, err = tui.Run(ctx, title, cfg.Driver().Steps(), frameRate, func(ctx context.Context, obs driver.Observer) (*driver.Result, error) {
			d.AddObserver(obs)
			return d.Run(ctx)
		})
	} else {
		reporter := driver.NewTextReporter(out)
		if !quiet {
			d.AddObserver(reporter)
		}
		fmt.Fprintln(out, "Starting simulation")
		res, err = d.Run(ctx)
		if res != nil && res.Reason != driver.Cancelled {
			fmt.Fprintln(out, "Stopping simulation")
		}
		if rerr := reporter.Err(); rerr != nil {
			log.WithError(rerr).Warn("step output was cut short")
		}
	}

	if res != nil {
		fields := logrus.Fields{"steps": res.Steps, "reason": res.Reason, "elapsed": res.Elapsed}
		for name, v := range res.Metrics {
			fields[name] = v
		}
		log.WithFields(fields).Info("walk finished")

		if rec != nil && len(rec.Samples) > 0 {
			saveRun(cmd.OutOrStdout(), log, cfg, client.Addr(), res, rec)
		}
		if res.Reason == driver.Cancelled {
			fmt.Fprintln(out, "\nExiting...")
		} else if !quiet {
			printMetrics(cmd.OutOrStdout(), res.Metrics)
		}
	}

	if err != nil {
		log.WithError(err).WithField("kind", simclient.KindOf(err)).Error("walk failed")
		return err
	}
	return nil
}

func saveRun(out io.Writer, log logrus.FieldLogger, cfg *config.Config, addr string, res *driver.Result, rec *storage.Recorder) {
	st := storage.New(cfg.DataDir)
	runID, err := st.Save(storage.RunMetadata{
		Gait:      gaitName(cfg.Gait),
		Simulator: addr,
		Dt:        cfg.Dt,
		Horizon:   cfg.Horizon,
		Reason:    res.Reason.String(),
		Metrics:   res.Metrics,
	}, rec)
	if err != nil {
		log.WithError(err).Error("failed to save run")
		return
	}
	log.WithField("run", runID).Info("run saved")
	fmt.Fprintf(out, "saved run %s\n", runID)
}

func printMetrics(out io.Writer, m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %.4f\n", name, m[name])
	}
}
