package core

import (
	"math"
	"testing"
)

func TestVec_Arithmetic(t *testing.T) {
	a := NewVec(1, 2, 3)
	b := NewVec(0.5, -1, 2)

	tests := []struct {
		name     string
		got      Vec
		expected Vec
	}{
		{"add", a.Add(b), NewVec(1.5, 1, 5)},
		{"subtract", a.Subtract(b), NewVec(0.5, 3, 1)},
		{"multiply", a.Multiply(2), NewVec(2, 4, 6)},
		{"add scaled", a.AddScaled(-2, b), NewVec(0, 4, -1)},
		{"negate", a.Negate(), NewVec(-1, -2, -3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.ApproxEqual(tt.expected, 1e-12) {
				t.Errorf("got %v, expected %v", tt.got, tt.expected)
			}
		})
	}

	// Receivers are never modified
	if !a.ApproxEqual(NewVec(1, 2, 3), 0) {
		t.Errorf("receiver modified: %v", a)
	}
}

func TestVec_Norms(t *testing.T) {
	v := NewVec(3, 4)
	if v.Length() != 5 || v.LengthSquared() != 25 {
		t.Errorf("length of %v = %v (squared %v)", v, v.Length(), v.LengthSquared())
	}
	if d := v.DistanceSquared(NewVec(0, 0)); math.Abs(d-25) > 1e-12 {
		t.Errorf("DistanceSquared = %v, expected 25", d)
	}
	if n := v.Normalize(); !n.ApproxEqual(NewVec(0.6, 0.8), 1e-12) {
		t.Errorf("Normalize = %v", n)
	}
	if n := Zeros(3).Normalize(); !n.ApproxEqual(Zeros(3), 0) {
		t.Errorf("zero vector normalized to %v", n)
	}
	if v.Dot(NewVec(1, -1)) != -1 {
		t.Errorf("Dot = %v, expected -1", v.Dot(NewVec(1, -1)))
	}
}

func TestVec_Predicates(t *testing.T) {
	tests := []struct {
		name   string
		v      Vec
		finite bool
		inCube bool
	}{
		{"inside", NewVec(0.2, 0.7), true, true},
		{"on faces", NewVec(0, 1), true, true},
		{"outside", NewVec(1.1, 0.5), true, false},
		{"nan", NewVec(math.NaN(), 0.5), false, false},
		{"inf", NewVec(math.Inf(1), 0.5), false, false},
	}
	for _, tt := range tests {
		if got := tt.v.IsFinite(); got != tt.finite {
			t.Errorf("%s: IsFinite = %v", tt.name, got)
		}
		if got := tt.v.InUnitCube(); got != tt.inCube {
			t.Errorf("%s: InUnitCube = %v", tt.name, got)
		}
	}
	if NewVec(1, 2).ApproxEqual(NewVec(1, 2, 3), 1) {
		t.Error("vectors of different dimension must not be equal")
	}
}

func TestVec_CloneIsIndependent(t *testing.T) {
	v := NewVec(1, 2)
	c := v.Clone()
	c[0] = 5
	if v[0] != 1 {
		t.Error("Clone shares storage with the original")
	}
	var empty Vec
	if empty.Clone() != nil {
		t.Error("nil vector should clone to nil")
	}
}
