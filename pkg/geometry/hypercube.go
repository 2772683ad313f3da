package geometry

import (
	"math"

	"github.com/df07/go-flatnuts/pkg/core"
)

// Crossing is the point where a line meets a face of the unit hypercube
type Crossing struct {
	Point core.Vec // Crossing point, hit coordinate snapped onto the face
	T     float64  // Parametric distance along the direction
	Axis  int      // Axis whose face is hit
}

// BoxLineIntersection intersects the infinite line start + t*direction with
// the unit hypercube using the slab method. It returns the entry crossing
// (smallest t) and the exit crossing (largest t). Swapping the sign of the
// direction swaps the two crossings and negates their t.
//
// Ties (corner hits) resolve to the lowest axis index. Axes with a zero
// direction component are parallel to their slab and never hit. A zero
// direction yields both crossings at start with t=0 on axis 0.
func BoxLineIntersection(start, direction core.Vec) (Crossing, Crossing) {
	entryT, exitT := math.Inf(-1), math.Inf(1)
	entryAxis, exitAxis := -1, -1

	for axis := range start {
		d := direction[axis]
		if d == 0 {
			continue
		}

		// Parametric distances to the 0 and 1 faces of this slab
		t0 := (0 - start[axis]) / d
		t1 := (1 - start[axis]) / d
		if d < 0 {
			t0, t1 = t1, t0
		}

		if t0 > entryT {
			entryT, entryAxis = t0, axis
		}
		if t1 < exitT {
			exitT, exitAxis = t1, axis
		}
	}

	if entryAxis < 0 {
		// Zero direction: the line degenerates to the start point
		return Crossing{Point: start.Clone(), T: 0, Axis: 0}, Crossing{Point: start.Clone(), T: 0, Axis: 0}
	}

	entry := crossingAt(start, direction, entryT, entryAxis, false)
	exit := crossingAt(start, direction, exitT, exitAxis, true)
	return entry, exit
}

// NearestBoxIntersectionLine returns the first face crossing when moving from
// start along direction (fwd) or against it (!fwd). The returned T is the
// non-negative distance travelled in the requested sense.
func NearestBoxIntersectionLine(start, direction core.Vec, fwd bool) Crossing {
	entry, exit := BoxLineIntersection(start, direction)
	if fwd {
		return exit
	}
	entry.T = -entry.T
	return entry
}

// crossingAt builds the crossing point at parameter t, placing the hit
// coordinate exactly on its face so that later steps start on the boundary.
func crossingAt(start, direction core.Vec, t float64, axis int, exit bool) Crossing {
	point := start.AddScaled(t, direction)
	for i, x := range point {
		point[i] = clampUnit(x)
	}

	// Exit moves with the direction, entry against it
	positive := direction[axis] > 0
	if !exit {
		positive = !positive
	}
	if positive {
		point[axis] = 1
	} else {
		point[axis] = 0
	}
	return Crossing{Point: point, T: t, Axis: axis}
}

// LinearStepsWithReflection advances start by the signed parametric distance
// t along direction inside the unit hypercube and returns the new position and
// direction.
//
// Non-wrapped axes reflect specularly off their faces: the coordinate follows
// a triangle wave and the direction component flips once per bounce. Wrapped
// axes are periodic: the coordinate is taken modulo 1 and the direction is
// unchanged. Both are evaluated in closed form per axis, so any number of
// bounces is exact. The composition law holds: stepping t1 then t2 equals
// stepping t1+t2.
//
// Reflecting axes use the closed interval [0, 1]: a step landing exactly on a
// face returns 0 or 1, and landing on the upper face already counts as the
// bounce (the component is flipped). Wrapped axes use [0, 1), with 1 mapped
// to 0. Cube membership checks must therefore accept the closed cube, as
// core.Vec.InUnitCube does.
//
// wrapped may be nil or shorter than the dimension; missing entries are
// treated as reflecting. A non-finite t leaves the state unchanged.
func LinearStepsWithReflection(start, direction core.Vec, t float64, wrapped []bool) (core.Vec, core.Vec) {
	position := start.Clone()
	velocity := direction.Clone()
	if t == 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return position, velocity
	}

	for axis := range position {
		y := start[axis] + t*direction[axis]
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}

		if axis < len(wrapped) && wrapped[axis] {
			position[axis] = wrapUnit(y)
			continue
		}

		// Triangle wave: every crossed face mirrors the coordinate
		n := math.Floor(y)
		frac := y - n
		if math.Mod(math.Abs(n), 2) == 1 {
			position[axis] = clampUnit(1 - frac)
			velocity[axis] = -direction[axis]
		} else {
			position[axis] = clampUnit(frac)
		}
	}
	return position, velocity
}

// wrapUnit maps y onto [0, 1)
func wrapUnit(y float64) float64 {
	x := y - math.Floor(y)
	if x >= 1 {
		// y was a tiny negative number that rounded up
		return 0
	}
	return x
}

func clampUnit(x float64) float64 {
	return max(0, min(1, x))
}
