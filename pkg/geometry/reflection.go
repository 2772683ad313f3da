package geometry

import "github.com/df07/go-flatnuts/pkg/core"

// Angle returns the projection of v onto the unit vector along normal.
// Only its sign matters for the u-turn and inward/outward tests; its
// magnitude makes Reflect a proper specular reflection. A zero normal gives 0.
func Angle(normal, v core.Vec) float64 {
	length := normal.Length()
	if length == 0 {
		return 0
	}
	return normal.Dot(v) / length
}

// Reflect mirrors v on the plane with the given unit normal:
// v - 2*Angle(normal, v)*normal. Applying it twice returns v.
func Reflect(v, normal core.Vec) core.Vec {
	return v.AddScaled(-2*Angle(normal, v), normal)
}

// Cosine returns the cosine of the angle between normal and v, or 0 when
// either vector is zero.
func Cosine(normal, v core.Vec) float64 {
	ln, lv := normal.Length(), v.Length()
	if ln == 0 || lv == 0 {
		return 0
	}
	return normal.Dot(v) / (ln * lv)
}

// SphereTangents treats each center as a sphere passing through edge and
// returns, per sphere, the unit vector at edge pointing toward its center.
// Coincident points give a zero vector.
func SphereTangents(centers []core.Vec, edge core.Vec) []core.Vec {
	tangents := make([]core.Vec, len(centers))
	for i, center := range centers {
		tangents[i] = center.Subtract(edge).Normalize()
	}
	return tangents
}
