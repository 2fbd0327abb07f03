package driver

import (
	"bufio"
	"fmt"
	"io"
)

// DescribeInitial lists the motors and force sensors sim registered.
func DescribeInitial(w io.Writer, sim Sim) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Registered motors: %d\n", sim.CountMotors())
	for i := 0; i < sim.CountMotors(); i++ {
		m, err := sim.Motor(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "[%d] %s minPos=%s maxPos=%s TorqueMax=%s\n",
			i, m.Name, num(m.MinPos), num(m.MaxPos), num(m.TorqueMax))
	}

	fmt.Fprintf(bw, "Registered force sensors: %d\n", sim.CountForceSensors())
	for i := 0; i < sim.CountForceSensors(); i++ {
		f, err := sim.ForceSensor(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "[%d] %s\n", i, f.Name)
	}
	return bw.Flush()
}

// TextReporter prints every snapshot as an indented block of readings.
type TextReporter struct {
	w   *bufio.Writer
	err error
}

func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: bufio.NewWriter(w)}
}

func (r *TextReporter) OnStep(s *Snapshot, _ []float64) {
	if r.err != nil {
		return
	}
	w := r.w
	fmt.Fprintf(w, "Simulation step t=%s\n", num(s.Time))
	for i, m := range s.Motors {
		fmt.Fprintf(w, "   #[%d] %s pos=%s torque=%s\n", i, m.Name, num(m.Pos), num(m.Torque))
	}
	for i, f := range s.Forces {
		fmt.Fprintf(w, "   *[%d] %s force=%s torque=%s\n", i, f.Name, num(f.Force), num(f.Torque))
	}
	fmt.Fprintf(w, "   -    Accelerometer X=%s Y=%s Z=%s\n", num(s.Accel.X), num(s.Accel.Y), num(s.Accel.Z))
	fmt.Fprintf(w, "   -    Position tracker X=%s Y=%s Z=%s\n", num(s.Tracker.X), num(s.Tracker.Y), num(s.Tracker.Z))
	r.err = w.Flush()
}

// Err reports the first write failure, if any. Later steps are dropped
// once a write fails.
func (r *TextReporter) Err() error { return r.err }

// num formats like a default ostream: six significant digits.
func num(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
