package metrics

import (
	"math"

	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/wire"
)

// Displacement is how far the body travelled over the ground plane, from
// the first tracker reading to the latest.
type Displacement struct {
	name   string
	start  wire.Vec3
	last   wire.Vec3
	seeded bool
}

func NewDisplacement() *Displacement {
	return &Displacement{name: "displacement"}
}

func (d *Displacement) Name() string { return d.name }

func (d *Displacement) Observe(s *driver.Snapshot, _ []float64) {
	if !d.seeded {
		d.start = s.Tracker
		d.seeded = true
	}
	d.last = s.Tracker
}

func (d *Displacement) Value() float64 {
	return math.Hypot(d.last.X-d.start.X, d.last.Y-d.start.Y)
}

func (d *Displacement) Reset() {
	*d = Displacement{name: d.name}
}
