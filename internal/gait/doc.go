// Package gait turns simulation time into joint position targets for a
// legged robot.
//
// Targets are laid out flat, one value per actuator, with the actuator for
// joint j of leg i at index [ActuatorIndex](i, j) = i*3 + j.
//
//   - [Keyframes]: linear blend between consecutive poses of a [Table]
//   - [Oscillator]: per-leg sinusoidal drive (fixed, front, side, back)
//
// Both implement [Pattern], which is what the driver consumes.
//
// # Frame selection
//
// With rate r and F frames, time t selects frame k = floor(t*r) mod F and
// blends toward frame (k+1) mod F by alpha = frac(t*r):
//
//	kf, _ := gait.NewKeyframes(gait.Tripod, 1)
//	targets := kf.Targets(2.25) // 25% of the way from frame 2 to frame 3
package gait
