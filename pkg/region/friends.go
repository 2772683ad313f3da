package region

import (
	"math"

	"github.com/df07/go-flatnuts/pkg/core"
)

// Friends is the union of equal balls around the whitened live points.
// The ball radius is the largest leave-one-out nearest-neighbour distance,
// scaled by an enlargement factor. It is read-only after construction and
// safe to share between samplers.
type Friends struct {
	layer       *AffineLayer
	points      []core.Vec
	normed      []core.Vec
	maxRadiusSq float64
}

// NewFriends builds the region from live points in unit-cube coordinates.
// enlarge multiplies the squared radius; values below 1 are raised to 1.
func NewFriends(points []core.Vec, wrapped []bool, enlarge float64) (*Friends, error) {
	layer, err := NewAffineLayer(points, wrapped)
	if err != nil {
		return nil, err
	}

	f := &Friends{
		layer:  layer,
		points: make([]core.Vec, len(points)),
		normed: make([]core.Vec, len(points)),
	}
	for i, p := range points {
		f.points[i] = p.Clone()
		f.normed[i] = layer.Transform(p)
	}
	f.maxRadiusSq = max(1, enlarge) * maxNearestNeighbourSq(f.normed)
	return f, nil
}

// maxNearestNeighbourSq returns the largest squared distance from any point
// to its nearest other point.
func maxNearestNeighbourSq(points []core.Vec) float64 {
	worst := 0.0
	for i, p := range points {
		nearest := math.Inf(1)
		for j, q := range points {
			if i == j {
				continue
			}
			nearest = min(nearest, p.DistanceSquared(q))
		}
		worst = max(worst, nearest)
	}
	return worst
}

// Inside reports whether u is within the ball radius of some live point
func (f *Friends) Inside(u core.Vec) bool {
	if !u.InUnitCube() {
		return false
	}
	bpt := f.layer.Transform(u)
	for _, p := range f.normed {
		if p.DistanceSquared(bpt) <= f.maxRadiusSq {
			return true
		}
	}
	return false
}

// Transform maps unit-cube coordinates to whitened coordinates
func (f *Friends) Transform(u core.Vec) core.Vec { return f.layer.Transform(u) }

// Untransform maps whitened coordinates back to the unit cube
func (f *Friends) Untransform(v core.Vec) core.Vec { return f.layer.Untransform(v) }

// Points returns the live points in unit-cube coordinates
func (f *Friends) Points() []core.Vec { return f.points }

// NormedPoints returns the live points in whitened coordinates
func (f *Friends) NormedPoints() []core.Vec { return f.normed }

// WrappedDims returns the periodic dimension flags
func (f *Friends) WrappedDims() []bool { return f.layer.WrappedDims() }

// MaxRadiusSq returns the squared ball radius in whitened coordinates
func (f *Friends) MaxRadiusSq() float64 { return f.maxRadiusSq }

// Layer returns the whitening layer
func (f *Friends) Layer() *AffineLayer { return f.layer }
