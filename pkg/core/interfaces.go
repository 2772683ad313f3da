package core

// LogLikelihood evaluates the log-likelihood at physical parameters
type LogLikelihood func(params []float64) float64

// Transform maps a unit-cube point to physical parameters
type Transform func(u []float64) []float64

// Problem bundles the likelihood oracle with the threshold of the current
// nested-sampling iteration. Lmin is passed with every call and never cached
// by the samplers.
type Problem struct {
	LogLike   LogLikelihood
	Transform Transform // nil means identity
	Lmin      float64
}

// Evaluate returns the log-likelihood at unit-cube point u and whether it
// exceeds Lmin.
func (p Problem) Evaluate(u Vec) (float64, bool) {
	params := []float64(u.Clone())
	if p.Transform != nil {
		params = p.Transform(params)
	}
	logl := p.LogLike(params)
	return logl, logl > p.Lmin
}
