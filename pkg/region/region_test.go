package region

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-flatnuts/pkg/core"
)

func ellipsePoints(n int, seed int64) []core.Vec {
	random := core.NewSeededSampler(seed)
	points := make([]core.Vec, 0, n)
	for len(points) < n {
		u := core.RandomPointInCube(2, random)
		dx, dy := (u[0]-0.5)/0.3, (u[1]-0.5)/0.05
		if dx*dx+dy*dy < 1 {
			points = append(points, u)
		}
	}
	return points
}

func TestAffineLayer_RoundTrip(t *testing.T) {
	layer, err := NewAffineLayer(ellipsePoints(200, 1), nil)
	if err != nil {
		t.Fatalf("NewAffineLayer failed: %v", err)
	}
	if layer.Dim() != 2 {
		t.Errorf("Dim() = %d, expected 2", layer.Dim())
	}

	for _, u := range []core.Vec{core.NewVec(0.5, 0.5), core.NewVec(0.1, 0.9), core.NewVec(0, 1)} {
		back := layer.Untransform(layer.Transform(u))
		if !back.ApproxEqual(u, 1e-9) {
			t.Errorf("round trip of %v gave %v", u, back)
		}
	}
}

func TestAffineLayer_Whitens(t *testing.T) {
	points := ellipsePoints(400, 2)
	layer, err := NewAffineLayer(points, nil)
	if err != nil {
		t.Fatalf("NewAffineLayer failed: %v", err)
	}

	var sumX2, sumY2 float64
	for _, p := range points {
		w := layer.Transform(p)
		sumX2 += w[0] * w[0]
		sumY2 += w[1] * w[1]
	}
	n := float64(len(points) - 1)
	if math.Abs(sumX2/n-1) > 1e-6 || math.Abs(sumY2/n-1) > 1e-6 {
		t.Errorf("whitened variances = (%v, %v), expected 1", sumX2/n, sumY2/n)
	}
}

func TestAffineLayer_SingularFallback(t *testing.T) {
	// All points share y, so the covariance is singular
	points := []core.Vec{core.NewVec(0.1, 0.5), core.NewVec(0.3, 0.5), core.NewVec(0.7, 0.5)}
	layer, err := NewAffineLayer(points, nil)
	if err != nil {
		t.Fatalf("NewAffineLayer failed: %v", err)
	}
	u := core.NewVec(0.4, 0.6)
	w := layer.Transform(u)
	if !w.IsFinite() {
		t.Fatalf("Transform(%v) = %v, expected finite", u, w)
	}
	if back := layer.Untransform(w); !back.ApproxEqual(u, 1e-12) {
		t.Errorf("round trip of %v gave %v", u, back)
	}
}

func TestAffineLayer_Errors(t *testing.T) {
	if _, err := NewAffineLayer([]core.Vec{core.NewVec(0.5, 0.5)}, nil); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("single point error = %v, expected ErrTooFewPoints", err)
	}
	if _, err := NewAffineLayer([]core.Vec{core.NewVec(0.5, 0.5), core.NewVec(0.5)}, nil); err == nil {
		t.Error("expected an error for mixed dimensions")
	}
}

func TestFriends_Inside(t *testing.T) {
	points := ellipsePoints(300, 3)
	friends, err := NewFriends(points, []bool{false, true}, 1)
	if err != nil {
		t.Fatalf("NewFriends failed: %v", err)
	}

	for i, p := range points {
		if !friends.Inside(p) {
			t.Errorf("live point %d = %v should be inside", i, p)
		}
	}
	tests := []struct {
		name string
		u    core.Vec
		want bool
	}{
		{"centre", core.NewVec(0.5, 0.5), true},
		{"far above", core.NewVec(0.5, 0.95), false},
		{"corner", core.NewVec(0.02, 0.02), false},
		{"outside cube", core.NewVec(-0.1, 0.5), false},
	}
	for _, tt := range tests {
		if got := friends.Inside(tt.u); got != tt.want {
			t.Errorf("%s: Inside(%v) = %v, expected %v", tt.name, tt.u, got, tt.want)
		}
	}

	if got := friends.WrappedDims(); len(got) != 2 || got[0] || !got[1] {
		t.Errorf("WrappedDims() = %v", got)
	}
	if len(friends.NormedPoints()) != len(points) || len(friends.Points()) != len(points) {
		t.Error("accessors should return every live point")
	}
}

func TestFriends_EnlargeGrowsRadius(t *testing.T) {
	points := ellipsePoints(100, 4)
	small, err := NewFriends(points, nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	large, err := NewFriends(points, nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(large.MaxRadiusSq()-4*small.MaxRadiusSq()) > 1e-12 {
		t.Errorf("radius: enlarge 4 gives %v, enlarge 0.5 gives %v", large.MaxRadiusSq(), small.MaxRadiusSq())
	}
}
