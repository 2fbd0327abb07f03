package driver

import "github.com/san-kum/hexwalk/internal/wire"

type MotorState struct {
	Name   string
	Pos    float64
	Torque float64
}

type ForceState struct {
	Name   string
	Force  float64
	Torque float64
}

// Snapshot is the sensor state read at the start of a step. The driver
// reuses one Snapshot across steps, so observers that keep readings must
// copy them.
type Snapshot struct {
	Step    int
	Time    float64
	Motors  []MotorState
	Forces  []ForceState
	Accel   wire.Vec3
	Tracker wire.Vec3
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Motors = append([]MotorState(nil), s.Motors...)
	c.Forces = append([]ForceState(nil), s.Forces...)
	return &c
}

func newSnapshot(sim Sim) *Snapshot {
	s := &Snapshot{
		Motors: make([]MotorState, sim.CountMotors()),
		Forces: make([]ForceState, sim.CountForceSensors()),
	}
	for i := range s.Motors {
		if m, err := sim.Motor(i); err == nil {
			s.Motors[i].Name = m.Name
		}
	}
	for i := range s.Forces {
		if f, err := sim.ForceSensor(i); err == nil {
			s.Forces[i].Name = f.Name
		}
	}
	return s
}

// Observer sees each snapshot before the simulator is stepped. cmd holds
// the targets about to be written, indexed by actuator.
type Observer interface {
	OnStep(s *Snapshot, cmd []float64)
}

type ObserverFunc func(s *Snapshot, cmd []float64)

func (f ObserverFunc) OnStep(s *Snapshot, cmd []float64) { f(s, cmd) }

type Metric interface {
	Name() string
	Observe(s *Snapshot, cmd []float64)
	Value() float64
	Reset()
}
