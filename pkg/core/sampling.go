package core

import (
	"math"
	"math/rand"
)

// Sampler provides random numbers for the trajectory samplers.
// Can be swapped out for deterministic testing.
type Sampler interface {
	Get1D() float64
	GetNormal() float64
	Intn(n int) int
}

// RandomSampler wraps a standard Go random generator
type RandomSampler struct {
	random *rand.Rand
}

// NewRandomSampler creates a sampler from a Go random generator
func NewRandomSampler(random *rand.Rand) *RandomSampler {
	return &RandomSampler{random: random}
}

// NewSeededSampler creates a sampler with its own deterministic source
func NewSeededSampler(seed int64) *RandomSampler {
	return NewRandomSampler(rand.New(rand.NewSource(seed)))
}

// Get1D returns a random float64 in [0, 1)
func (r *RandomSampler) Get1D() float64 {
	return r.random.Float64()
}

// GetNormal returns a standard normal deviate
func (r *RandomSampler) GetNormal() float64 {
	return r.random.NormFloat64()
}

// Intn returns a random int in [0, n)
func (r *RandomSampler) Intn(n int) int {
	return r.random.Intn(n)
}

// RandomDirection draws an isotropic direction of the given length
func RandomDirection(dim int, length float64, sampler Sampler) Vec {
	for {
		v := make(Vec, dim)
		for i := range v {
			v[i] = sampler.GetNormal()
		}
		norm := v.Length()
		// Reject the (measure zero) degenerate draw
		if norm == 0 || math.IsInf(norm, 0) {
			continue
		}
		return v.Multiply(length / norm)
	}
}

// RandomPointInCube draws a uniform point in [0, 1)^dim
func RandomPointInCube(dim int, sampler Sampler) Vec {
	p := make(Vec, dim)
	for i := range p {
		p[i] = sampler.Get1D()
	}
	return p
}
