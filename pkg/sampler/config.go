package sampler

import (
	"github.com/pkg/errors"
)

// NUTSConfig bounds the tree doubling of NUTSSampler
type NUTSConfig struct {
	MaxDepth int `yaml:"max_depth"` // doublings before the tree is forced to stop
}

// DefaultNUTSConfig returns sensible defaults
func DefaultNUTSConfig() NUTSConfig {
	return NUTSConfig{
		MaxDepth: 10,
	}
}

// Validate checks the configuration
func (c NUTSConfig) Validate() error {
	if c.MaxDepth < 1 {
		return errors.Errorf("sampler: max_depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.MaxDepth > 30 {
		return errors.Errorf("sampler: max_depth %d overflows the step index", c.MaxDepth)
	}
	return nil
}
