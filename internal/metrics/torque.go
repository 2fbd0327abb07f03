package metrics

import (
	"math"

	"github.com/san-kum/hexwalk/internal/driver"
)

type PeakTorque struct {
	name string
	peak float64
}

func NewPeakTorque() *PeakTorque {
	return &PeakTorque{name: "peak_torque"}
}

func (p *PeakTorque) Name() string { return p.name }

func (p *PeakTorque) Observe(s *driver.Snapshot, _ []float64) {
	for _, m := range s.Motors {
		p.peak = math.Max(p.peak, math.Abs(m.Torque))
	}
}

func (p *PeakTorque) Value() float64 { return p.peak }
func (p *PeakTorque) Reset()         { p.peak = 0 }

// All returns one fresh instance of every walk metric.
func All() []driver.Metric {
	return []driver.Metric{
		NewTrackingError(),
		NewDisplacement(),
		NewPeakTorque(),
	}
}
