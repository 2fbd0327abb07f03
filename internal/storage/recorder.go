package storage

import (
	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/wire"
)

// Sample is one recorded step.
type Sample struct {
	Time    float64
	Pos     []float64
	Torque  []float64
	Targets []float64
	Tracker wire.Vec3
	Accel   wire.Vec3
}

// Recorder is a driver observer that keeps every step in memory.
type Recorder struct {
	Motors  []string
	Samples []Sample
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnStep(s *driver.Snapshot, cmd []float64) {
	if r.Motors == nil {
		r.Motors = make([]string, len(s.Motors))
		for i, m := range s.Motors {
			r.Motors[i] = m.Name
		}
	}

	smp := Sample{
		Time:    s.Time,
		Pos:     make([]float64, len(s.Motors)),
		Torque:  make([]float64, len(s.Motors)),
		Targets: append([]float64(nil), cmd...),
		Tracker: s.Tracker,
		Accel:   s.Accel,
	}
	for i, m := range s.Motors {
		smp.Pos[i] = m.Pos
		smp.Torque[i] = m.Torque
	}
	r.Samples = append(r.Samples, smp)
}
