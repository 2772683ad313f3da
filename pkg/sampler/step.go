package sampler

import (
	"github.com/df07/go-flatnuts/pkg/trajectory"
)

// StepSampler expands the path one step at a time, reflecting at the first
// step that leaves the region. Every visited index is evaluated.
type StepSampler struct {
	*clocked
}

// NewStepSampler creates a step sampler over contour
func NewStepSampler(contour *trajectory.ContourSamplingPath, opts ...Option) *StepSampler {
	return &StepSampler{clocked: newClocked(contour, stepwise, opts)}
}

// BisectSampler jumps straight to the requested index and, when that point
// is outside, bisects back to the first outside index before reflecting.
// Indices skipped by a successful jump are not evaluated, so the path may
// hide gaps; GapFree checks a range explicitly.
type BisectSampler struct {
	*clocked
}

// NewBisectSampler creates a bisecting sampler over contour
func NewBisectSampler(contour *trajectory.ContourSamplingPath, opts ...Option) *BisectSampler {
	return &BisectSampler{clocked: newClocked(contour, bisection, opts)}
}
