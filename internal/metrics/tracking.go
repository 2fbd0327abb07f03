package metrics

import (
	"math"

	"github.com/san-kum/hexwalk/internal/driver"
)

// TrackingError is the mean absolute gap between the position commanded
// on one step and the position measured at the start of the next.
type TrackingError struct {
	name    string
	prev    []float64
	sum     float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{
		name: "tracking_error",
	}
}

func (m *TrackingError) Name() string {
	return m.name
}

func (m *TrackingError) Observe(s *driver.Snapshot, cmd []float64) {
	if m.prev != nil {
		n := min(len(m.prev), len(s.Motors))
		for i := 0; i < n; i++ {
			m.sum += math.Abs(m.prev[i] - s.Motors[i].Pos)
			m.samples++
		}
	}
	m.prev = append(m.prev[:0], cmd...)
}

func (m *TrackingError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *TrackingError) Reset() {
	m.prev = nil
	m.sum = 0
	m.samples = 0
}
