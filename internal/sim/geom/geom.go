package geom

import "math"

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }
func (v Vec3) ToArray() [3]float64  { return [3]float64{v.X, v.Y, v.Z} }
func FromArray(a [3]float64) Vec3   { return Vec3{a[0], a[1], a[2]} }
func Dist(a, b Vec3) float64        { return a.Sub(b).Len() }

// Normalize returns the zero vector for (near) zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Rotator is a view orientation in degrees. Yaw turns around +Y starting at
// +X towards +Z; Pitch tilts up towards +Y.
type Rotator struct {
	Pitch float64
	Yaw   float64
}

// Vector returns the unit forward vector for r.
func (r Rotator) Vector() Vec3 {
	p := r.Pitch * math.Pi / 180
	y := r.Yaw * math.Pi / 180
	cp := math.Cos(p)
	return Vec3{X: cp * math.Cos(y), Y: math.Sin(p), Z: cp * math.Sin(y)}
}

// LookAt returns the rotator that faces from -> to.
func LookAt(from, to Vec3) Rotator {
	d := to.Sub(from)
	horiz := math.Hypot(d.X, d.Z)
	return Rotator{
		Pitch: math.Atan2(d.Y, horiz) * 180 / math.Pi,
		Yaw:   math.Atan2(d.Z, d.X) * 180 / math.Pi,
	}
}
