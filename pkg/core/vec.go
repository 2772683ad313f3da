package core

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vec is a point or direction in the D-dimensional sampling space.
// Methods never modify the receiver; they return freshly allocated vectors.
type Vec []float64

// NewVec creates a new Vec from its components
func NewVec(components ...float64) Vec {
	v := make(Vec, len(components))
	copy(v, components)
	return v
}

// Zeros returns a zero vector of the given dimension
func Zeros(dim int) Vec {
	return make(Vec, dim)
}

// Dim returns the number of components
func (v Vec) Dim() int {
	return len(v)
}

// Clone returns a copy of the vector
func (v Vec) Clone() Vec {
	if v == nil {
		return nil
	}
	c := make(Vec, len(v))
	copy(c, v)
	return c
}

// Add returns the sum of two vectors
func (v Vec) Add(other Vec) Vec {
	return floats.AddTo(make(Vec, len(v)), v, other)
}

// Subtract returns the difference of two vectors
func (v Vec) Subtract(other Vec) Vec {
	return floats.SubTo(make(Vec, len(v)), v, other)
}

// Multiply returns the vector scaled by a scalar
func (v Vec) Multiply(scalar float64) Vec {
	return floats.ScaleTo(make(Vec, len(v)), scalar, v)
}

// AddScaled returns v + scalar*other
func (v Vec) AddScaled(scalar float64, other Vec) Vec {
	return floats.AddScaledTo(make(Vec, len(v)), v, scalar, other)
}

// Negate returns the negative of the vector
func (v Vec) Negate() Vec {
	return v.Multiply(-1)
}

// Dot returns the dot product of two vectors
func (v Vec) Dot(other Vec) float64 {
	return floats.Dot(v, other)
}

// Length returns the Euclidean norm of the vector
func (v Vec) Length() float64 {
	return floats.Norm(v, 2)
}

// LengthSquared returns the squared Euclidean norm
func (v Vec) LengthSquared() float64 {
	return floats.Dot(v, v)
}

// Normalize returns a unit vector in the same direction.
// The zero vector normalizes to itself.
func (v Vec) Normalize() Vec {
	length := v.Length()
	if length == 0 {
		return Zeros(len(v))
	}
	return v.Multiply(1.0 / length)
}

// DistanceSquared returns the squared Euclidean distance between two points
func (v Vec) DistanceSquared(other Vec) float64 {
	d := floats.Distance(v, other, 2)
	return d * d
}

// ApproxEqual reports whether all components agree within tol
func (v Vec) ApproxEqual(other Vec, tol float64) bool {
	if len(v) != len(other) {
		return false
	}
	return floats.EqualApprox(v, other, tol)
}

// IsFinite reports whether no component is NaN or infinite
func (v Vec) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// InUnitCube reports whether every component lies in [0, 1]
func (v Vec) InUnitCube() bool {
	for _, x := range v {
		if !(x >= 0 && x <= 1) {
			return false
		}
	}
	return true
}
