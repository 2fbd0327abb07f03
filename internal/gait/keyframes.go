package gait

import (
	"errors"
	"fmt"
	"math"
)

const (
	NumLegs      = 6
	JointsPerLeg = 3
)

var (
	ErrEmptyTable  = errors.New("gait: keyframe table has no frames")
	ErrRaggedTable = errors.New("gait: keyframe frames differ in leg count")
	ErrBadRate     = errors.New("gait: frame rate must be positive")
)

// Joint holds the shoulder, knee and ankle targets of one leg.
type Joint [JointsPerLeg]float64

// Frame is one pose: a Joint per leg.
type Frame []Joint

type Table []Frame

// Validate checks that the table is uniform F x L x 3 with F, L > 0.
func (t Table) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTable
	}
	legs := len(t[0])
	if legs == 0 {
		return fmt.Errorf("%w: frame 0 is empty", ErrRaggedTable)
	}
	for i, f := range t {
		if len(f) != legs {
			return fmt.Errorf("%w: frame %d has %d legs, want %d", ErrRaggedTable, i, len(f), legs)
		}
	}
	return nil
}

func (t Table) Legs() int {
	if len(t) == 0 {
		return 0
	}
	return len(t[0])
}

func (t Table) Clone() Table {
	c := make(Table, len(t))
	for i, f := range t {
		c[i] = append(Frame(nil), f...)
	}
	return c
}

// Pattern produces one position target per actuator for a given time.
type Pattern interface {
	// Actuators is the number of values Fill writes.
	Actuators() int
	// Fill writes the targets for time t into out, which must hold at
	// least Actuators() values.
	Fill(t float64, out []float64)
}

// ActuatorIndex maps a (leg, joint) pair to the flat actuator index.
func ActuatorIndex(leg, joint int) int {
	return leg*JointsPerLeg + joint
}

// Keyframes blends linearly between consecutive frames of a table.
type Keyframes struct {
	table Table
	rate  float64
}

// NewKeyframes validates table and returns an interpolator advancing rate
// frames per unit of time. The table is copied.
func NewKeyframes(table Table, rate float64) (*Keyframes, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w, got %v", ErrBadRate, rate)
	}
	return &Keyframes{table: table.Clone(), rate: rate}, nil
}

func (k *Keyframes) Table() Table   { return k.table.Clone() }
func (k *Keyframes) Rate() float64  { return k.rate }
func (k *Keyframes) Actuators() int { return k.table.Legs() * JointsPerLeg }
func (k *Keyframes) NumFrames() int { return len(k.table) }

// Phase returns the active frame index and the blend factor toward the
// following frame. Negative times are treated as zero.
func (k *Keyframes) Phase(t float64) (int, float64) {
	if t < 0 {
		t = 0
	}
	pos := t * k.rate
	whole := math.Floor(pos)
	alpha := pos - whole
	frame := int(math.Mod(whole, float64(len(k.table))))
	return frame, alpha
}

func (k *Keyframes) Fill(t float64, out []float64) {
	cur, alpha := k.Phase(t)
	// The last frame blends back into the first.
	next := (cur + 1) % len(k.table)
	from, to := k.table[cur], k.table[next]
	for leg := range from {
		for j := 0; j < JointsPerLeg; j++ {
			a := from[leg][j]
			out[ActuatorIndex(leg, j)] = a + alpha*(to[leg][j]-a)
		}
	}
}

// Targets is Fill into a freshly allocated slice.
func (k *Keyframes) Targets(t float64) []float64 {
	out := make([]float64, k.Actuators())
	k.Fill(t, out)
	return out
}

// Trace samples one actuator of p at n evenly spaced times in [from, to].
func Trace(p Pattern, actuator int, from, to float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	buf := make([]float64, p.Actuators())
	out := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range out {
		p.Fill(from+float64(i)*step, buf)
		out[i] = buf[actuator]
	}
	return out
}

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
