package driver_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/hexwalk/internal/wire"
)

var errInjected = errors.New("injected failure")

// fakeSim counts every call the driver makes. failOp makes the named
// operation fail once steps reaches failAt; onStep runs after each
// successful NextStep.
type fakeSim struct {
	motors  int
	sensors int

	ops    []string
	writes map[int][]float64
	steps  int
	starts int
	stops  int
	closes int

	failOp string
	failAt int
	onStep func(step int)
}

func newFakeSim(motors, sensors int) *fakeSim {
	return &fakeSim{motors: motors, sensors: sensors, writes: make(map[int][]float64)}
}

func (f *fakeSim) fail(op string) error {
	if f.failOp == op && f.steps >= f.failAt {
		return errInjected
	}
	return nil
}

func (f *fakeSim) record(op string) { f.ops = append(f.ops, op) }

func (f *fakeSim) Start(context.Context) error {
	f.record("start")
	f.starts++
	return f.fail("start")
}

func (f *fakeSim) Stop(ctx context.Context) error {
	f.record("stop")
	f.stops++
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return f.fail("stop")
}

func (f *fakeSim) NextStep(context.Context) error {
	if err := f.fail("step"); err != nil {
		return err
	}
	f.steps++
	if f.onStep != nil {
		f.onStep(f.steps)
	}
	return nil
}

func (f *fakeSim) Close() error {
	f.record("close")
	f.closes++
	return nil
}

func (f *fakeSim) CountMotors() int       { return f.motors }
func (f *fakeSim) CountForceSensors() int { return f.sensors }

func (f *fakeSim) Motor(i int) (wire.MotorInfo, error) {
	if i < 0 || i >= f.motors {
		return wire.MotorInfo{}, fmt.Errorf("motor %d", i)
	}
	return wire.MotorInfo{Name: fmt.Sprintf("m%d", i), MinPos: -1, MaxPos: 1, TorqueMax: 2}, nil
}

func (f *fakeSim) ForceSensor(i int) (wire.SensorInfo, error) {
	if i < 0 || i >= f.sensors {
		return wire.SensorInfo{}, fmt.Errorf("sensor %d", i)
	}
	return wire.SensorInfo{Name: fmt.Sprintf("f%d", i)}, nil
}

func (f *fakeSim) ReadPos(_ context.Context, i int) (float64, error) {
	if w := f.writes[i]; len(w) > 0 {
		return w[len(w)-1], f.fail("read")
	}
	return 0, f.fail("read")
}

func (f *fakeSim) ReadTorque(context.Context, int) (float64, error) { return 0.5, nil }

func (f *fakeSim) WritePos(_ context.Context, i int, v float64) error {
	if err := f.fail("write"); err != nil {
		return err
	}
	f.writes[i] = append(f.writes[i], v)
	return nil
}

func (f *fakeSim) ReadForce(context.Context, int) (wire.ForceReading, error) {
	return wire.ForceReading{Force: 1, Torque: 0.1}, nil
}

func (f *fakeSim) ReadAccelerometer(context.Context) (wire.Vec3, error) {
	return wire.Vec3{Z: -9.81}, nil
}

func (f *fakeSim) ReadTracker(context.Context) (wire.Vec3, error) {
	return wire.Vec3{X: float64(f.steps) * 0.01}, nil
}
