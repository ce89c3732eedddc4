package geom

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRotatorVector(t *testing.T) {
	cases := []struct {
		r    Rotator
		want Vec3
	}{
		{Rotator{}, Vec3{1, 0, 0}},
		{Rotator{Yaw: 90}, Vec3{0, 0, 1}},
		{Rotator{Pitch: 90}, Vec3{0, 1, 0}},
		{Rotator{Yaw: 180}, Vec3{-1, 0, 0}},
	}
	for _, c := range cases {
		got := c.r.Vector()
		if !near(got.X, c.want.X) || !near(got.Y, c.want.Y) || !near(got.Z, c.want.Z) {
			t.Fatalf("%+v: got %+v want %+v", c.r, got, c.want)
		}
	}
}

func TestLookAtRoundTrip(t *testing.T) {
	from := Vec3{1, 2, 3}
	to := Vec3{4, -2, 9}
	dir := LookAt(from, to).Vector()
	want := to.Sub(from).Normalize()
	if !near(dir.X, want.X) || !near(dir.Y, want.Y) || !near(dir.Z, want.Z) {
		t.Fatalf("got %+v want %+v", dir, want)
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("got %+v", got)
	}
	if got := Dist(Vec3{0, 3, 0}, Vec3{4, 0, 0}); !near(got, 5) {
		t.Fatalf("dist: got %v want 5", got)
	}
}
