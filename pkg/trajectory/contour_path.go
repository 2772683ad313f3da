package trajectory

import (
	"math"

	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/geometry"
)

// tangentStep is the length, in whitened coordinates, of the nudge used to
// carry a tangent direction back into unit-cube coordinates.
const tangentStep = 1e-3

// minTangentLength is the shortest unit-cube image of a tangent nudge that is
// not rounding noise.
const minTangentLength = tangentStep * 1e-6

// Region approximates the likelihood-constrained part of the unit cube.
// Implementations must be safe for concurrent read-only use.
type Region interface {
	// Inside reports membership of a unit-cube point
	Inside(u core.Vec) bool
	// Transform maps unit-cube coordinates to whitened coordinates
	Transform(u core.Vec) core.Vec
	// Untransform maps whitened coordinates back to the unit cube
	Untransform(v core.Vec) core.Vec
	// Points returns the live points in unit-cube coordinates
	Points() []core.Vec
	// NormedPoints returns the live points in whitened coordinates
	NormedPoints() []core.Vec
	// WrappedDims flags periodic dimensions
	WrappedDims() []bool
}

// ContourSamplingPath couples a SamplingPath with the region so that the
// trajectory can reflect off the likelihood contour as well as off the cube.
type ContourSamplingPath struct {
	Path   *SamplingPath
	region Region
}

// NewContourSamplingPath wraps path; the region is referenced, not owned
func NewContourSamplingPath(path *SamplingPath, region Region) *ContourSamplingPath {
	path.SetWrappedDims(region.WrappedDims())
	return &ContourSamplingPath{Path: path, region: region}
}

// Region returns the region oracle
func (c *ContourSamplingPath) Region() Region {
	return c.region
}

// Add records an evaluated state on the underlying path
func (c *ContourSamplingPath) Add(i int, x, v core.Vec, L float64) {
	c.Path.Add(i, x, v, L)
}

// Interpolate delegates to the underlying path
func (c *ContourSamplingPath) Interpolate(i int) (State, error) {
	return c.Path.Interpolate(i)
}

// Extrapolate delegates to the underlying path
func (c *ContourSamplingPath) Extrapolate(i int) (core.Vec, core.Vec, error) {
	return c.Path.Extrapolate(i)
}

// Inside reports whether u lies in the unit cube and in the region
func (c *ContourSamplingPath) Inside(u core.Vec) bool {
	return u.InUnitCube() && c.region.Inside(u)
}

// Gradient estimates the boundary normal at point for a trajectory arriving
// with velocity v.
//
// Every live point proposes a candidate normal: the unit-cube image of the
// direction from point toward that live point in whitened space. A live point
// coinciding with point proposes nothing. A candidate is usable when v heads
// against it; the reversed reflection -(v - 2*Angle(n, v)*n) has the same
// component along n, so it heads against it too. Among usable candidates the
// one whose live point is nearest to point (in whitened space) wins.
//
// The choice must be the same for a traveller coming back along the
// reflected path, so the winner is accepted only if the reversed reflected
// velocity selects it too. The boolean is false when no consistent normal
// exists; the caller must then treat the direction as terminal.
func (c *ContourSamplingPath) Gradient(point, v core.Vec) (core.Vec, bool) {
	bpt := c.region.Transform(point)
	normals, distances := c.candidateNormals(bpt)

	k := selectNormal(normals, distances, v)
	if k < 0 {
		return nil, false
	}

	reversed := geometry.Reflect(v, normals[k]).Negate()
	if selectNormal(normals, distances, reversed) != k {
		return nil, false
	}
	return normals[k].Clone(), true
}

// candidateNormals returns one unit-cube normal per live point and the
// squared whitened distance from bpt to that live point. Degenerate
// candidates are nil.
func (c *ContourSamplingPath) candidateNormals(bpt core.Vec) ([]core.Vec, []float64) {
	normed := c.region.NormedPoints()
	live := c.region.Points()
	tangents := geometry.SphereTangents(normed, bpt)

	normals := make([]core.Vec, len(normed))
	distances := make([]float64, len(normed))
	for k, tangent := range tangents {
		distances[k] = normed[k].DistanceSquared(bpt)
		if tangent.LengthSquared() == 0 {
			continue
		}
		t := c.region.Untransform(normed[k].AddScaled(tangentStep, tangent)).Subtract(live[k])
		if !t.IsFinite() || t.Length() < minTangentLength {
			continue
		}
		normals[k] = t.Normalize()
	}
	return normals, distances
}

// selectNormal returns the index of the nearest candidate that v heads
// against, or -1.
func selectNormal(normals []core.Vec, distances []float64, v core.Vec) int {
	best := -1
	bestDist := math.Inf(1)
	for k, normal := range normals {
		if normal == nil || geometry.Cosine(normal, v) >= 0 {
			continue
		}
		if distances[k] < bestDist {
			best, bestDist = k, distances[k]
		}
	}
	return best
}

// Reflect bounces v off the region boundary at point. The boolean is false
// when no consistent normal exists.
func (c *ContourSamplingPath) Reflect(point, v core.Vec) (core.Vec, bool) {
	normal, ok := c.Gradient(point, v)
	if !ok {
		return nil, false
	}
	return geometry.Reflect(v, normal), true
}
