package simserver

import (
	"fmt"
	"math"

	"github.com/san-kum/hexwalk/internal/wire"
)

var jointNames = [3]string{"shoulder", "knee", "ankle"}

type motor struct {
	info   wire.MotorInfo
	pos    float64
	target float64
	torque float64
}

// world is the simulated robot. It is guarded by Server.mu.
type world struct {
	name    string
	gain    float64
	stiff   float64
	motors  []motor
	sensors []wire.SensorInfo
	force   []wire.ForceReading
	running bool
	tracker wire.Vec3
	accel   wire.Vec3
	vel     float64

	steps  int
	starts int
	stops  int
	writes []int
}

func newWorld(cfg Config) *world {
	w := &world{
		name:   cfg.Name,
		gain:   cfg.Gain,
		stiff:  cfg.Stiffness,
		writes: make([]int, cfg.Legs*len(jointNames)),
		accel:  wire.Vec3{Z: -9.81},
	}
	for leg := 0; leg < cfg.Legs; leg++ {
		for _, j := range jointNames {
			w.motors = append(w.motors, motor{info: wire.MotorInfo{
				Name:      fmt.Sprintf("leg%d_%s", leg, j),
				MinPos:    -cfg.Limit,
				MaxPos:    cfg.Limit,
				TorqueMax: cfg.TorqueMax,
			}})
		}
	}
	for i := 0; i < cfg.ForceSensors; i++ {
		w.sensors = append(w.sensors, wire.SensorInfo{Name: fmt.Sprintf("foot%d_force", i)})
	}
	w.force = make([]wire.ForceReading, len(w.sensors))
	return w
}

func (w *world) hello() wire.Hello {
	h := wire.Hello{Name: w.name}
	for _, m := range w.motors {
		h.Motors = append(h.Motors, m.info)
	}
	h.ForceSensors = append(h.ForceSensors, w.sensors...)
	return h
}

func (w *world) write(i int, v float64) {
	m := &w.motors[i]
	m.target = math.Max(m.info.MinPos, math.Min(m.info.MaxPos, v))
	w.writes[i]++
}

// step moves every joint a fixed fraction toward its target. Torque is
// proportional to the remaining error and the body creeps forward by the
// amount of shoulder travel.
func (w *world) step() {
	travel := 0.0
	for i := range w.motors {
		m := &w.motors[i]
		delta := w.gain * (m.target - m.pos)
		m.pos += delta
		m.torque = math.Max(-m.info.TorqueMax, math.Min(m.info.TorqueMax, w.stiff*(m.target-m.pos)))
		if i%len(jointNames) == 0 {
			travel += math.Abs(delta)
		}
	}

	prev := w.vel
	w.vel = 0.05 * travel
	w.tracker.X += w.vel
	w.accel.X = w.vel - prev

	for i := range w.force {
		r := wire.ForceReading{Force: 9.81}
		if knee := i*len(jointNames) + 1; knee < len(w.motors) {
			r.Force *= 1 + math.Abs(w.motors[knee].pos)
			r.Torque = math.Abs(w.motors[knee].torque)
		}
		w.force[i] = r
	}
	w.steps++
}
