package runner

import (
	"github.com/pkg/errors"

	"github.com/df07/go-flatnuts/pkg/sampler"
)

// Sampler kinds accepted by Config.Sampler
const (
	SamplerNUTS   = "nuts"
	SamplerStep   = "step"
	SamplerBisect = "bisect"
)

// Config controls a batch of trajectories
type Config struct {
	Sampler      string             `yaml:"sampler"`       // nuts, step or bisect
	Problem      string             `yaml:"problem"`       // registered problem id
	LivePoints   int                `yaml:"live_points"`   // points defining the region
	Trajectories int                `yaml:"trajectories"`  // independent samples to draw
	Steps        int                `yaml:"steps"`         // requested |n| for step and bisect samplers
	StepScale    float64            `yaml:"step_scale"`    // length of the initial velocity
	Enlarge      float64            `yaml:"enlarge"`       // region radius enlargement
	Workers      int                `yaml:"workers"`       // concurrent trajectories, 0 for NumCPU
	MaxRetries   int                `yaml:"max_retries"`   // fresh starts after a trajectory returns its seed
	Seed         int64              `yaml:"seed"`          // base seed for every random stream
	NUTS         sampler.NUTSConfig `yaml:"nuts"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Sampler:      SamplerNUTS,
		Problem:      "gaussian-bowl",
		LivePoints:   400,
		Trajectories: 100,
		Steps:        20,
		StepScale:    0.04,
		Enlarge:      1,
		Workers:      0,
		MaxRetries:   3,
		Seed:         42,
		NUTS:         sampler.DefaultNUTSConfig(),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Sampler {
	case SamplerNUTS, SamplerStep, SamplerBisect:
	default:
		return errors.Errorf("runner: unknown sampler %q", c.Sampler)
	}
	if c.LivePoints < 2 {
		return errors.Errorf("runner: live_points must be at least 2, got %d", c.LivePoints)
	}
	if c.Trajectories < 1 {
		return errors.Errorf("runner: trajectories must be positive, got %d", c.Trajectories)
	}
	if c.Steps < 1 {
		return errors.Errorf("runner: steps must be positive, got %d", c.Steps)
	}
	if !(c.StepScale > 0) {
		return errors.Errorf("runner: step_scale must be positive, got %v", c.StepScale)
	}
	if c.Workers < 0 || c.MaxRetries < 0 {
		return errors.New("runner: workers and max_retries must not be negative")
	}
	if c.Sampler == SamplerNUTS {
		return errors.Wrap(c.NUTS.Validate(), "runner")
	}
	return nil
}
