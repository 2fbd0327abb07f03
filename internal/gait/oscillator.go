package gait

import (
	"fmt"
	"math"
	"strings"
)

type LegMode int

const (
	ModeFixed LegMode = iota
	ModeFront
	ModeSide
	ModeBack
)

var legModeNames = map[LegMode]string{
	ModeFixed: "fixed",
	ModeFront: "front",
	ModeSide:  "side",
	ModeBack:  "back",
}

func (m LegMode) String() string {
	if s, ok := legModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("LegMode(%d)", int(m))
}

func ParseLegMode(s string) (LegMode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for m, name := range legModeNames {
		if name == want {
			return m, nil
		}
	}
	return ModeFixed, fmt.Errorf("gait: unknown leg mode %q", s)
}

type LegDrive struct {
	Mode  LegMode
	Phase float64
}

// Oscillator drives each leg with a sinusoid chosen by its mode. Omega is
// the angular frequency of front and side legs, BackOmega of back legs.
type Oscillator struct {
	Omega     float64
	BackOmega float64
	Legs      []LegDrive
}

func (o Oscillator) Actuators() int { return len(o.Legs) * JointsPerLeg }

func (o Oscillator) Fill(t float64, out []float64) {
	for leg, d := range o.Legs {
		var j Joint
		switch d.Mode {
		case ModeFront:
			s := math.Sin(o.Omega*t + d.Phase)
			j = Joint{0, s, s + 0.2}
		case ModeSide:
			j = Joint{math.Sin(o.Omega*t + d.Phase), math.Sin(o.Omega*t + math.Pi/2), 0}
		case ModeBack:
			j = Joint{0, 0.3*math.Sin(o.BackOmega*t+d.Phase) - 0.3, 0}
		}
		for k := 0; k < JointsPerLeg; k++ {
			out[ActuatorIndex(leg, k)] = j[k]
		}
	}
}

func (o Oscillator) Targets(t float64) []float64 {
	out := make([]float64, o.Actuators())
	o.Fill(t, out)
	return out
}
