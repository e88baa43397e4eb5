package collision

import "math"

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(s float64) Vec { return Vec{v.X * s, v.Y * s} }
func (v Vec) Dot(o Vec) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec) Length() float64 { return math.Hypot(v.X, v.Y) }

// Normalize returns the unit vector, or the zero vector unchanged.
func (v Vec) Normalize() Vec {
	length := v.Length()
	if length == 0 {
		return v
	}
	return v.Scale(1 / length)
}

// Circle is a dynamic body tagged with the identity that owns it.
type Circle struct {
	Owner  string
	Center Vec
	Radius float64
}

// Polygon is a static body; vertices describe a closed outline.
type Polygon struct {
	Vertices []Vec
}

// Hit describes the first body intersected by a raycast. Owner is
// empty when the hit body is a static polygon.
type Hit struct {
	Owner    string
	Point    Vec
	Distance float64
}

// Space owns the set of bodies for one match.
type Space struct {
	polygons []*Polygon
	circles  []*Circle
}

func NewSpace() *Space {
	return &Space{}
}

func (s *Space) AddPolygon(vertices []Vec) *Polygon {
	polygon := &Polygon{Vertices: vertices}
	s.polygons = append(s.polygons, polygon)
	return polygon
}

func (s *Space) AddCircle(owner string, center Vec, radius float64) *Circle {
	circle := &Circle{Owner: owner, Center: center, Radius: radius}
	s.circles = append(s.circles, circle)
	return circle
}

func (s *Space) RemoveCircle(circle *Circle) {
	for i, c := range s.circles {
		if c == circle {
			s.circles = append(s.circles[:i], s.circles[i+1:]...)
			return
		}
	}
}

// Clear drops every body; call when the map changes between matches.
func (s *Space) Clear() {
	s.polygons = nil
	s.circles = nil
}

// Separate resolves the circle's overlaps by the minimal translation,
// pushing it out of walls and other circles. Only the given circle is
// moved.
func (s *Space) Separate(circle *Circle) {
	for _, polygon := range s.polygons {
		separateFromPolygon(circle, polygon)
	}

	for _, other := range s.circles {
		if other == circle {
			continue
		}

		delta := circle.Center.Sub(other.Center)
		distance := delta.Length()
		overlap := circle.Radius + other.Radius - distance

		if overlap <= 0 {
			continue
		}

		if distance == 0 {
			// Coincident centers: push along x.
			delta = Vec{X: 1}
			distance = 1
		}

		circle.Center = circle.Center.Add(delta.Scale(overlap / distance))
	}
}

func separateFromPolygon(circle *Circle, polygon *Polygon) {
	vertices := polygon.Vertices

	for i := range vertices {
		a := vertices[i]
		b := vertices[(i+1)%len(vertices)]

		closest := closestPointOnSegment(circle.Center, a, b)
		delta := circle.Center.Sub(closest)
		distance := delta.Length()

		if distance >= circle.Radius || distance == 0 {
			continue
		}

		circle.Center = circle.Center.Add(delta.Scale((circle.Radius - distance) / distance))
	}
}

func closestPointOnSegment(p, a, b Vec) Vec {
	ab := b.Sub(a)
	lengthSq := ab.Dot(ab)
	if lengthSq == 0 {
		return a
	}

	t := p.Sub(a).Dot(ab) / lengthSq
	t = math.Max(0, math.Min(1, t))

	return a.Add(ab.Scale(t))
}

// Raycast casts from origin along direction out to maxDistance and
// returns the nearest intersected body. Circles owned by ignoreOwner
// are skipped so a shooter never hits their own hitbox.
func (s *Space) Raycast(origin, direction Vec, maxDistance float64, ignoreOwner string) (Hit, bool) {
	direction = direction.Normalize()
	if direction.Length() == 0 {
		return Hit{}, false
	}

	best := Hit{Distance: maxDistance}
	found := false

	for _, circle := range s.circles {
		if circle.Owner == ignoreOwner {
			continue
		}

		if t, ok := rayCircle(origin, direction, circle); ok && t <= best.Distance {
			best = Hit{Owner: circle.Owner, Point: origin.Add(direction.Scale(t)), Distance: t}
			found = true
		}
	}

	for _, polygon := range s.polygons {
		vertices := polygon.Vertices
		for i := range vertices {
			a := vertices[i]
			b := vertices[(i+1)%len(vertices)]

			if t, ok := raySegment(origin, direction, a, b); ok && t <= best.Distance {
				best = Hit{Point: origin.Add(direction.Scale(t)), Distance: t}
				found = true
			}
		}
	}

	return best, found
}

// rayCircle solves |origin + t*direction - center|^2 = r^2 for the
// smallest non-negative t.
func rayCircle(origin, direction Vec, circle *Circle) (float64, bool) {
	oc := origin.Sub(circle.Center)

	b := oc.Dot(direction)
	c := oc.Dot(oc) - circle.Radius*circle.Radius

	discriminant := b*b - c
	if discriminant < 0 {
		return 0, false
	}

	sqrt := math.Sqrt(discriminant)

	t := -b - sqrt
	if t < 0 {
		t = -b + sqrt
	}
	if t < 0 {
		return 0, false
	}

	return t, true
}

// raySegment intersects the ray with segment ab.
func raySegment(origin, direction Vec, a, b Vec) (float64, bool) {
	seg := b.Sub(a)

	denominator := direction.X*seg.Y - direction.Y*seg.X
	if denominator == 0 {
		return 0, false
	}

	ao := a.Sub(origin)

	t := (ao.X*seg.Y - ao.Y*seg.X) / denominator
	u := (ao.X*direction.Y - ao.Y*direction.X) / denominator

	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}

	return t, true
}
