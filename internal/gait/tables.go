package gait

// Tripod is the four-pose walking table. Each row is one leg, ordered as
// the simulator enumerates them; each column is shoulder, knee, ankle.
var Tripod = Table{
	{
		{0, 0, 0},
		{0, -0.2, 0},
		{0, 0.2, 0},
		{0, -0.2, 0},
		{0, 0, 0},
		{0, 0.2, 0},
	},
	{
		{0, 0, 0},
		{0.6, -0.2, 0},
		{0, 0.2, 0},
		{-0.6, -0.2, 0},
		{0, 0, 0},
		{0, 0.2, 0},
	},
	{
		{0.6, -0.2, 0},
		{0.6, 0, 0},
		{0, -0.2, 0},
		{-0.6, 0, 0},
		{-0.6, -0.2, 0},
		{0, -0.2, 0},
	},
	{
		{-0.6, 0, 0},
		{-0.6, 0, 0},
		{0, -0.2, 0},
		{0.6, 0, 0},
		{0.6, 0, 0},
		{0, -0.2, 0},
	},
}

// Wave drives the front-style legs with staggered phases and holds the
// remaining two legs still.
var Wave = Oscillator{
	Omega:     2000,
	BackOmega: 20000,
	Legs: []LegDrive{
		{Mode: ModeFront, Phase: 0},
		{Mode: ModeFront, Phase: 1.0471975511965976}, // pi/3
		{Mode: ModeFixed},
		{Mode: ModeFront, Phase: 1.5707963267948966}, // pi/2
		{Mode: ModeFront, Phase: 3.141592653589793},
		{Mode: ModeFixed},
	},
}
