package space

import (
	"math"
	"sort"

	"focuscraft.ai/internal/sim/geom"
)

// Body is a sphere collider owned by one actor.
type Body struct {
	ID     string
	Center geom.Vec3
	Radius float64
}

type Hit struct {
	ActorID     string
	ImpactPoint geom.Vec3
	// Distance from the trace start to ImpactPoint.
	Distance float64
}

// Scene is the line-query facility used by interaction scans.
// Not safe for concurrent use; it belongs to the world loop.
type Scene struct {
	bodies map[string]Body
}

func NewScene() *Scene {
	return &Scene{bodies: map[string]Body{}}
}

func (s *Scene) Add(b Body) {
	if b.ID == "" {
		return
	}
	if b.Radius < 0 {
		b.Radius = 0
	}
	s.bodies[b.ID] = b
}

func (s *Scene) Remove(id string) { delete(s.bodies, id) }

func (s *Scene) Move(id string, center geom.Vec3) {
	b, ok := s.bodies[id]
	if !ok {
		return
	}
	b.Center = center
	s.bodies[id] = b
}

func (s *Scene) Body(id string) (Body, bool) {
	b, ok := s.bodies[id]
	return b, ok
}

func (s *Scene) Len() int { return len(s.bodies) }

// LineTraceSingle returns the nearest body intersected by the segment
// start->end, skipping ignored actor ids. A body whose sphere already
// contains start is hit at start.
func (s *Scene) LineTraceSingle(start, end geom.Vec3, ignore ...string) (Hit, bool) {
	seg := end.Sub(start)
	length := seg.Len()
	if length <= 0 {
		return Hit{}, false
	}
	dir := seg.Scale(1 / length)

	skip := map[string]bool{}
	for _, id := range ignore {
		skip[id] = true
	}

	// Deterministic tie-break on equal distance.
	ids := make([]string, 0, len(s.bodies))
	for id := range s.bodies {
		if !skip[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	best := Hit{}
	found := false
	for _, id := range ids {
		b := s.bodies[id]
		t, ok := raySphere(start, dir, b.Center, b.Radius)
		if !ok || t > length {
			continue
		}
		if !found || t < best.Distance {
			best = Hit{ActorID: id, ImpactPoint: start.Add(dir.Scale(t)), Distance: t}
			found = true
		}
	}
	return best, found
}

// raySphere returns the smallest t >= 0 where origin+dir*t touches the sphere.
// dir must be unit length.
func raySphere(origin, dir, center geom.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	c := oc.Dot(oc) - radius*radius
	if c <= 0 {
		return 0, true
	}
	b := oc.Dot(dir)
	if b > 0 {
		return 0, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		t = 0
	}
	return t, true
}
