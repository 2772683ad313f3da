package trajectory

import (
	"math"
	"testing"

	"github.com/df07/go-flatnuts/pkg/core"
	"github.com/df07/go-flatnuts/pkg/geometry"
	"github.com/df07/go-flatnuts/pkg/region"
)

// discRegion builds a friends region from points uniform in a disc of radius
// 0.2 around (0.5, 0.5).
func discRegion(t *testing.T, seed int64) *region.Friends {
	t.Helper()
	random := core.NewSeededSampler(seed)
	centre := core.NewVec(0.5, 0.5)
	var live []core.Vec
	for len(live) < 300 {
		u := core.RandomPointInCube(2, random)
		if u.DistanceSquared(centre) < 0.04 {
			live = append(live, u)
		}
	}
	friends, err := region.NewFriends(live, nil, 1)
	if err != nil {
		t.Fatalf("NewFriends failed: %v", err)
	}
	return friends
}

func TestContourSamplingPath_Inside(t *testing.T) {
	friends := discRegion(t, 1)
	contour := NewContourSamplingPath(NewSamplingPath(core.NewVec(0.5, 0.5), core.NewVec(0.01, 0), 0), friends)

	if !contour.Inside(core.NewVec(0.5, 0.5)) {
		t.Error("disc centre should be inside")
	}
	if contour.Inside(core.NewVec(0.05, 0.05)) {
		t.Error("cube corner should be outside")
	}
	if contour.Inside(core.NewVec(1.5, 0.5)) {
		t.Error("points outside the cube are never inside")
	}
}

func TestContourSamplingPath_GradientPointsInward(t *testing.T) {
	friends := discRegion(t, 2)
	contour := NewContourSamplingPath(NewSamplingPath(core.NewVec(0.5, 0.5), core.NewVec(0.01, 0), 0), friends)
	random := core.NewSeededSampler(3)

	found := 0
	for trial := 0; trial < 200; trial++ {
		// A point just past the disc edge, moving outward
		angle := 2 * math.Pi * random.Get1D()
		radial := core.NewVec(math.Cos(angle), math.Sin(angle))
		point := core.NewVec(0.5, 0.5).AddScaled(0.23, radial)
		v := radial.AddScaled(0.5, core.RandomDirection(2, 1, random)).Multiply(0.02)
		if v.Dot(radial) <= 0 {
			continue
		}

		normal, ok := contour.Gradient(point, v)
		if !ok {
			continue
		}
		found++

		if math.Abs(normal.Length()-1) > 1e-9 {
			t.Errorf("normal %v is not unit length", normal)
		}
		if geometry.Cosine(normal, v) >= 0 {
			t.Errorf("normal %v does not oppose velocity %v", normal, v)
		}
		if normal.Dot(radial) >= 0 {
			t.Errorf("normal %v at angle %.3f points away from the disc", normal, angle)
		}
	}
	if found == 0 {
		t.Fatal("no reflectable boundary point found")
	}
}

func TestContourSamplingPath_GradientReversible(t *testing.T) {
	friends := discRegion(t, 4)
	contour := NewContourSamplingPath(NewSamplingPath(core.NewVec(0.5, 0.5), core.NewVec(0.01, 0), 0), friends)
	random := core.NewSeededSampler(5)

	checked := 0
	for trial := 0; trial < 200; trial++ {
		angle := 2 * math.Pi * random.Get1D()
		radial := core.NewVec(math.Cos(angle), math.Sin(angle))
		point := core.NewVec(0.5, 0.5).AddScaled(0.22, radial)
		v := core.RandomDirection(2, 0.02, random)

		reflected, ok := contour.Reflect(point, v)
		if !ok {
			continue
		}
		checked++

		if math.Abs(reflected.Length()-v.Length()) > 1e-12 {
			t.Errorf("reflection changed speed: %v -> %v", v.Length(), reflected.Length())
		}
		// A traveller coming back along the reflected path bounces into -v
		back, ok := contour.Reflect(point, reflected.Negate())
		if !ok {
			t.Errorf("reverse traveller found no normal at %v", point)
			continue
		}
		if !back.ApproxEqual(v.Negate(), 1e-12) {
			t.Errorf("reverse reflection = %v, expected %v", back, v.Negate())
		}
	}
	if checked == 0 {
		t.Fatal("no reflectable boundary point found")
	}
}

func TestContourSamplingPath_CoincidentLivePointProposesNoNormal(t *testing.T) {
	friends := discRegion(t, 6)
	contour := NewContourSamplingPath(NewSamplingPath(core.NewVec(0.5, 0.5), core.NewVec(0.01, 0), 0), friends)

	for k, live := range friends.Points()[:20] {
		normals, distances := contour.candidateNormals(friends.Transform(live))
		if normals[k] != nil {
			t.Errorf("live point %d at the query point proposed normal %v", k, normals[k])
		}
		if distances[k] != 0 {
			t.Errorf("live point %d: distance %v, expected 0", k, distances[k])
		}
		for m, normal := range normals {
			if m != k && normal != nil && math.Abs(normal.Length()-1) > 1e-9 {
				t.Errorf("candidate %d is not unit length: %v", m, normal)
			}
		}
	}
}
