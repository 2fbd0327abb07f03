package main

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/hexwalk/internal/config"
	"github.com/san-kum/hexwalk/internal/gait"
	"github.com/san-kum/hexwalk/internal/storage"
	"github.com/san-kum/hexwalk/internal/tui"
	"github.com/spf13/cobra"
)

var jointNames = [gait.JointsPerLeg]string{"shoulder", "knee", "ankle"}

func presetArg(args []string) (config.Preset, string, error) {
	name := config.DefaultPreset
	if len(args) > 0 {
		name = args[0]
	}
	p, ok := config.GetPreset(name)
	if !ok {
		return p, name, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
	}
	return p, name, nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, tui.Header.Render("PRESET")+"\t"+tui.Header.Render("DESCRIPTION"))
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\n", name, p.Description)
	}
	return w.Flush()
}

func printFrames(cmd *cobra.Command, args []string) error {
	p, name, err := presetArg(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(p.Gait.Keyframes) == 0 {
		fmt.Fprintf(out, "%s is an oscillator gait (omega=%g, back omega=%g)\n", name, p.Gait.Oscillator.Omega, p.Gait.Oscillator.BackOmega)
		for i, l := range p.Gait.Oscillator.Legs {
			fmt.Fprintf(out, "  leg %d  %-6s  phase=%.1f°\n", i, l.Mode, gait.RadToDeg(l.Phase))
		}
		return nil
	}

	fmt.Fprintf(out, "%s: %d frames at %g per time unit\n", name, len(p.Gait.Keyframes), p.Gait.Rate)
	for k, frame := range p.Gait.Keyframes {
		fmt.Fprintf(out, "\nframe %d\n", k)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "leg\tshoulder\tknee\tankle\t")
		for leg, j := range frame {
			fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t\n", leg, j[0], j[1], j[2])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// parseJoint maps "legN_joint" to an actuator index.
func parseJoint(s string) (int, error) {
	var leg int
	var name string
	if _, err := fmt.Sscanf(strings.Replace(s, "_", " ", 1), "leg%d %s", &leg, &name); err != nil {
		return 0, fmt.Errorf("bad joint %q, want legN_shoulder, legN_knee or legN_ankle", s)
	}
	for j, jn := range jointNames {
		if jn == name {
			return gait.ActuatorIndex(leg, j), nil
		}
	}
	return 0, fmt.Errorf("bad joint %q, want legN_shoulder, legN_knee or legN_ankle", s)
}

func previewGait(cmd *cobra.Command, args []string) error {
	p, name, err := presetArg(args)
	if err != nil {
		return err
	}
	g := p.Gait
	if cmd.Flags().Changed("rate") {
		g.Rate = rate
	}
	pattern, err := g.Pattern()
	if err != nil {
		return err
	}

	idx, err := parseJoint(previewJoint)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= pattern.Actuators() {
		return fmt.Errorf("%s is outside the %d actuators of %s", previewJoint, pattern.Actuators(), name)
	}
	if samples < 2 {
		return fmt.Errorf("need at least 2 samples, got %d", samples)
	}

	cycle := 2 * math.Pi
	if kf, ok := pattern.(*gait.Keyframes); ok {
		cycle = float64(kf.NumFrames()) / kf.Rate()
	} else if g.Oscillator != nil && g.Oscillator.Omega > 0 {
		cycle = 2 * math.Pi / g.Oscillator.Omega
	}

	data := gait.Trace(pattern, idx, 0, cycle, samples)
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s %s over one cycle (%.3g time units)", name, previewJoint, cycle)),
	)
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGAIT\tTIME\tHORIZON\tDT\tSTEPS\tREASON\tDISPLACEMENT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.4f\t%d\t%s\t%.3f\n",
			run.ID,
			run.Gait,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Horizon,
			run.Dt,
			run.Steps,
			run.Reason,
			run.Metrics["displacement"],
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rec, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(rec.Samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "gait: %s\n", meta.Gait)
	fmt.Fprintf(out, "samples: %d\n\n", len(rec.Samples))

	motors := []int{}
	if plotJoint != "" {
		i, ok := rec.MotorIndex(plotJoint)
		if !ok {
			return fmt.Errorf("run %s has no motor %q", runID, plotJoint)
		}
		motors = append(motors, i)
	} else {
		// one joint of each kind on the first leg
		for i := 0; i < gait.JointsPerLeg && i < len(rec.Motors); i++ {
			motors = append(motors, i)
		}
	}

	for _, i := range motors {
		graph := asciigraph.Plot(rec.Series(i),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(rec.Motors[i]+" position"),
		)
		fmt.Fprintln(out, graph)
		fmt.Fprintln(out)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return st.Export(args[0], cmd.OutOrStdout())
}
