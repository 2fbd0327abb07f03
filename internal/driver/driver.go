package driver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/hexwalk/internal/gait"
	"github.com/san-kum/hexwalk/internal/logging"
	"github.com/san-kum/hexwalk/internal/wire"
	"github.com/sirupsen/logrus"
)

// Sim is the simulator surface the driver needs. *simclient.Client
// implements it.
type Sim interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	NextStep(ctx context.Context) error
	Close() error

	CountMotors() int
	CountForceSensors() int
	Motor(i int) (wire.MotorInfo, error)
	ForceSensor(i int) (wire.SensorInfo, error)

	ReadPos(ctx context.Context, motor int) (float64, error)
	ReadTorque(ctx context.Context, motor int) (float64, error)
	WritePos(ctx context.Context, motor int, pos float64) error
	ReadForce(ctx context.Context, sensor int) (wire.ForceReading, error)
	ReadAccelerometer(ctx context.Context) (wire.Vec3, error)
	ReadTracker(ctx context.Context) (wire.Vec3, error)
}

type Phase int

const (
	Disconnected Phase = iota
	Connected
	Running
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type StopReason int

const (
	Completed StopReason = iota
	Cancelled
	Failed
)

func (r StopReason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

const (
	DefaultDt      = 0.05
	DefaultHorizon = 60.0
)

type Config struct {
	Dt      float64
	Horizon float64
}

func DefaultConfig() Config {
	return Config{Dt: DefaultDt, Horizon: DefaultHorizon}
}

// Steps is the number of iterations: the horizon divided by the step,
// rounded so that 60/0.05 is exactly 1200.
func (c Config) Steps() int {
	return int(math.Round(c.Horizon / c.Dt))
}

func (c Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %v", ErrBadConfig, c.Dt)
	}
	if !(c.Horizon > 0) || math.IsInf(c.Horizon, 0) {
		return fmt.Errorf("%w: horizon must be positive, got %v", ErrBadConfig, c.Horizon)
	}
	if c.Steps() < 1 {
		return fmt.Errorf("%w: horizon %v shorter than one step of %v", ErrBadConfig, c.Horizon, c.Dt)
	}
	return nil
}

type Result struct {
	Steps   int
	Reason  StopReason
	Elapsed time.Duration
	Metrics map[string]float64
}

type Driver struct {
	sim       Sim
	pattern   gait.Pattern
	cfg       Config
	log       logrus.FieldLogger
	observers []Observer
	metrics   []Metric
	phase     Phase
}

// New takes ownership of an already connected sim.
func New(sim Sim, pattern gait.Pattern, cfg Config) *Driver {
	return &Driver{
		sim:     sim,
		pattern: pattern,
		cfg:     cfg,
		log:     logging.Discard(),
		phase:   Connected,
	}
}

func (d *Driver) SetLogger(log logrus.FieldLogger) { d.log = log }
func (d *Driver) AddObserver(o Observer)           { d.observers = append(d.observers, o) }
func (d *Driver) AddMetric(m Metric)               { d.metrics = append(d.metrics, m) }
func (d *Driver) Phase() Phase                     { return d.phase }

func (d *Driver) setPhase(p Phase) {
	d.log.WithFields(logrus.Fields{"from": d.phase, "to": p}).Debug("phase change")
	d.phase = p
}

// Run walks for the configured horizon. Cancelling ctx ends the walk
// early with Reason Cancelled and a nil error.
func (d *Driver) Run(ctx context.Context) (res *Result, err error) {
	if d.phase != Connected {
		return nil, fmt.Errorf("%w: phase is %s", ErrNotConnected, d.phase)
	}

	res = &Result{Reason: Failed, Metrics: make(map[string]float64)}
	started := time.Now()
	defer func() {
		if shutErr := d.shutdown(ctx); shutErr != nil && err == nil {
			err = shutErr
			res.Reason = Failed
		}
		res.Elapsed = time.Since(started)
		for _, m := range d.metrics {
			res.Metrics[m.Name()] = m.Value()
		}
	}()

	if err := d.cfg.Validate(); err != nil {
		return res, err
	}
	if n := d.pattern.Actuators(); d.sim.CountMotors() < n {
		return res, fmt.Errorf("%w: have %d, need %d", ErrTooFewMotors, d.sim.CountMotors(), n)
	}

	for _, m := range d.metrics {
		m.Reset()
	}

	d.log.Info("starting simulation")
	if err := d.sim.Start(ctx); err != nil {
		return d.abort(ctx, res, &StepError{Op: "start", Err: err})
	}
	d.setPhase(Running)

	steps := d.cfg.Steps()
	targets := make([]float64, d.pattern.Actuators())
	snap := newSnapshot(d.sim)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			d.log.WithField("step", i).Info("walk cancelled")
			res.Reason = Cancelled
			return res, nil
		default:
		}

		t := float64(i) * d.cfg.Dt
		if err := d.read(ctx, snap, i, t); err != nil {
			return d.abort(ctx, res, err)
		}

		d.pattern.Fill(t, targets)
		for _, m := range d.metrics {
			m.Observe(snap, targets)
		}
		for _, o := range d.observers {
			o.OnStep(snap, targets)
		}

		if err := d.sim.NextStep(ctx); err != nil {
			return d.abort(ctx, res, &StepError{Step: i, Time: t, Op: "next step", Err: err})
		}
		for idx, v := range targets {
			if err := d.sim.WritePos(ctx, idx, v); err != nil {
				return d.abort(ctx, res, &StepError{Step: i, Time: t, Op: fmt.Sprintf("write motor %d", idx), Err: err})
			}
		}
		res.Steps++
	}

	d.log.WithField("steps", res.Steps).Info("walk completed")
	res.Reason = Completed
	return res, nil
}

// abort reports err unless it was caused by ctx being cancelled.
func (d *Driver) abort(ctx context.Context, res *Result, err error) (*Result, error) {
	if ctx.Err() != nil {
		d.log.WithField("step", res.Steps).Info("walk cancelled")
		res.Reason = Cancelled
		return res, nil
	}
	res.Reason = Failed
	return res, err
}

func (d *Driver) read(ctx context.Context, s *Snapshot, step int, t float64) error {
	s.Step, s.Time = step, t
	for i := range s.Motors {
		pos, err := d.sim.ReadPos(ctx, i)
		if err != nil {
			return &StepError{Step: step, Time: t, Op: fmt.Sprintf("read motor %d position", i), Err: err}
		}
		torque, err := d.sim.ReadTorque(ctx, i)
		if err != nil {
			return &StepError{Step: step, Time: t, Op: fmt.Sprintf("read motor %d torque", i), Err: err}
		}
		s.Motors[i].Pos, s.Motors[i].Torque = pos, torque
	}
	for i := range s.Forces {
		r, err := d.sim.ReadForce(ctx, i)
		if err != nil {
			return &StepError{Step: step, Time: t, Op: fmt.Sprintf("read force sensor %d", i), Err: err}
		}
		s.Forces[i].Force, s.Forces[i].Torque = r.Force, r.Torque
	}
	var err error
	if s.Accel, err = d.sim.ReadAccelerometer(ctx); err != nil {
		return &StepError{Step: step, Time: t, Op: "read accelerometer", Err: err}
	}
	if s.Tracker, err = d.sim.ReadTracker(ctx); err != nil {
		return &StepError{Step: step, Time: t, Op: "read position tracker", Err: err}
	}
	return nil
}

// shutdown stops the simulation if it was started and releases the
// connection. It runs on every exit path and survives a cancelled ctx.
func (d *Driver) shutdown(ctx context.Context) error {
	if d.phase == Disconnected {
		return nil
	}

	var stopErr error
	if d.phase == Running {
		d.log.Info("stopping simulation")
		if stopErr = d.sim.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			d.log.WithError(stopErr).Warn("stop failed")
		}
		d.setPhase(Stopped)
	}

	closeErr := d.sim.Close()
	if closeErr != nil {
		d.log.WithError(closeErr).Warn("disconnect failed")
	}
	d.setPhase(Disconnected)

	if stopErr != nil {
		return &ShutdownError{Op: "stop", Err: stopErr}
	}
	if closeErr != nil {
		return &ShutdownError{Op: "disconnect", Err: closeErr}
	}
	return nil
}
