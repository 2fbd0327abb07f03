package config

import (
	"sort"

	"github.com/san-kum/hexwalk/internal/gait"
)

type Preset struct {
	Description string
	Gait        GaitConfig
}

var Presets = map[string]Preset{
	"tripod": {
		Description: "four-pose tripod table, one pose per second",
		Gait:        GaitConfig{Keyframes: gait.Tripod, Rate: 1},
	},
	"quarter": {
		Description: "tripod table stepped four poses per second",
		Gait:        GaitConfig{Keyframes: gait.Tripod, Rate: 4},
	},
	"wave": {
		Description: "sine oscillator on four legs, two held still",
		Gait:        GaitConfig{Oscillator: oscillatorConfig(gait.Wave)},
	},
}

func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
