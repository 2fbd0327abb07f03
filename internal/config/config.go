package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/san-kum/hexwalk/internal/driver"
	"github.com/san-kum/hexwalk/internal/gait"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPreset   = "tripod"
	DefaultTimeout  = 5 * time.Second
	DefaultLogLevel = "info"
	DefaultDataDir  = "runs"
)

type Config struct {
	Dt      float64       `yaml:"dt"`
	Horizon float64       `yaml:"horizon"`
	Timeout time.Duration `yaml:"timeout"`
	DataDir string        `yaml:"data_dir"`
	Record  bool          `yaml:"record"`
	Gait    GaitConfig    `yaml:"gait"`
	Log     LogConfig     `yaml:"log"`
}

// GaitConfig selects the walking pattern. An inline keyframe table wins
// over an oscillator, which wins over the named preset.
type GaitConfig struct {
	Preset     string            `yaml:"preset,omitempty"`
	Rate       float64           `yaml:"rate,omitempty"`
	Keyframes  gait.Table        `yaml:"keyframes,omitempty"`
	Oscillator *OscillatorConfig `yaml:"oscillator,omitempty"`
}

type OscillatorConfig struct {
	Omega     float64     `yaml:"omega"`
	BackOmega float64     `yaml:"back_omega"`
	Legs      []LegConfig `yaml:"legs"`
}

type LegConfig struct {
	Mode  string  `yaml:"mode"`
	Phase float64 `yaml:"phase"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Dt:      driver.DefaultDt,
		Horizon: driver.DefaultHorizon,
		Timeout: DefaultTimeout,
		DataDir: DefaultDataDir,
		Gait:    GaitConfig{Preset: DefaultPreset},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("dt must be positive, got %v", c.Dt)
	}
	if !(c.Horizon > 0) || math.IsInf(c.Horizon, 0) {
		return fmt.Errorf("horizon must be positive, got %v", c.Horizon)
	}
	if c.Dt > c.Horizon {
		return fmt.Errorf("dt %v is larger than the horizon %v", c.Dt, c.Horizon)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	if _, err := c.Gait.Pattern(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Driver() driver.Config {
	return driver.Config{Dt: c.Dt, Horizon: c.Horizon}
}

// Pattern builds the gait described by g.
func (g GaitConfig) Pattern() (gait.Pattern, error) {
	switch {
	case len(g.Keyframes) > 0:
		rate := g.Rate
		if rate == 0 {
			rate = 1
		}
		return gait.NewKeyframes(g.Keyframes, rate)
	case g.Oscillator != nil:
		if g.Rate != 0 {
			return nil, fmt.Errorf("rate %v only applies to keyframe gaits", g.Rate)
		}
		return g.Oscillator.build()
	}

	p, ok := Presets[g.Preset]
	if !ok {
		return nil, fmt.Errorf("unknown gait preset %q (have %v)", g.Preset, ListPresets())
	}
	if g.Rate != 0 {
		p.Gait.Rate = g.Rate
	}
	p.Gait.Preset = ""
	return p.Gait.Pattern()
}

func (o *OscillatorConfig) build() (gait.Oscillator, error) {
	osc := gait.Oscillator{Omega: o.Omega, BackOmega: o.BackOmega}
	if len(o.Legs) == 0 {
		return osc, fmt.Errorf("oscillator gait has no legs")
	}
	for i, l := range o.Legs {
		mode, err := gait.ParseLegMode(l.Mode)
		if err != nil {
			return osc, fmt.Errorf("leg %d: %w", i, err)
		}
		osc.Legs = append(osc.Legs, gait.LegDrive{Mode: mode, Phase: l.Phase})
	}
	return osc, nil
}

func oscillatorConfig(o gait.Oscillator) *OscillatorConfig {
	c := &OscillatorConfig{Omega: o.Omega, BackOmega: o.BackOmega}
	for _, l := range o.Legs {
		c.Legs = append(c.Legs, LegConfig{Mode: l.Mode.String(), Phase: l.Phase})
	}
	return c
}
