// Package region provides a reference region oracle: live points whitened
// by an affine layer, with membership defined by enlarged friend balls.
package region

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-flatnuts/pkg/core"
)

// ErrTooFewPoints is returned when a layer or region cannot be fitted
var ErrTooFewPoints = errors.New("region: need at least two live points")

// AffineLayer whitens unit-cube coordinates: Transform(u) = L^-1 (u - mean)
// where L is the Cholesky factor of the live point covariance. When the
// covariance is singular the layer falls back to per-axis scaling.
type AffineLayer struct {
	mean    []float64
	chol    *mat.TriDense // nil when using the diagonal fallback
	scale   []float64
	wrapped []bool
}

// NewAffineLayer fits the layer to the given live points
func NewAffineLayer(points []core.Vec, wrapped []bool) (*AffineLayer, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	dim := len(points[0])

	data := mat.NewDense(len(points), dim, nil)
	for i, p := range points {
		if len(p) != dim {
			return nil, errors.Errorf("region: point %d has dimension %d, expected %d", i, len(p), dim)
		}
		data.SetRow(i, p)
	}

	layer := &AffineLayer{
		mean:    make([]float64, dim),
		wrapped: append([]bool(nil), wrapped...),
	}
	for k := 0; k < dim; k++ {
		layer.mean[k] = stat.Mean(mat.Col(nil, k, data), nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var chol mat.Cholesky
	if chol.Factorize(&cov) {
		var lower mat.TriDense
		chol.LTo(&lower)
		layer.chol = &lower
		return layer, nil
	}

	// Singular covariance: scale each axis by its own spread
	layer.scale = make([]float64, dim)
	for k := 0; k < dim; k++ {
		s := math.Sqrt(cov.At(k, k))
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		layer.scale[k] = s
	}
	return layer, nil
}

// Dim returns the dimension of the layer
func (l *AffineLayer) Dim() int {
	return len(l.mean)
}

// WrappedDims returns the periodic dimension flags
func (l *AffineLayer) WrappedDims() []bool {
	return l.wrapped
}

// Transform maps a unit-cube point into whitened coordinates
func (l *AffineLayer) Transform(u core.Vec) core.Vec {
	centered := u.Subtract(l.mean)
	if l.chol == nil {
		out := make(core.Vec, len(centered))
		for k, x := range centered {
			out[k] = x / l.scale[k]
		}
		return out
	}

	var solved mat.VecDense
	if err := solved.SolveVec(l.chol, mat.NewVecDense(len(centered), centered)); err != nil {
		// Factorization succeeded, so L is non-singular; keep the centered value
		return centered
	}
	return vecFrom(&solved)
}

// Untransform maps whitened coordinates back to the unit cube
func (l *AffineLayer) Untransform(v core.Vec) core.Vec {
	if l.chol == nil {
		out := make(core.Vec, len(v))
		for k, x := range v {
			out[k] = x*l.scale[k] + l.mean[k]
		}
		return out
	}

	var mapped mat.VecDense
	mapped.MulVec(l.chol, mat.NewVecDense(len(v), v.Clone()))
	return vecFrom(&mapped).Add(l.mean)
}

func vecFrom(v *mat.VecDense) core.Vec {
	out := make(core.Vec, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
