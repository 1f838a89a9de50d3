package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/laop/components"
)

// Line is a static map segment.
type Line struct {
	A, B r2.Vec
}

// Bounds returns the segment's axis-aligned bounding box.
func (l Line) Bounds() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: math.Min(l.A.X, l.B.X), Y: math.Min(l.A.Y, l.B.Y)},
		Max: r2.Vec{X: math.Max(l.A.X, l.B.X), Y: math.Max(l.A.Y, l.B.Y)},
	}
}

// Length returns the segment length.
func (l Line) Length() float64 {
	return r2.Norm(r2.Sub(l.B, l.A))
}

// Shape is a collider baked at a body's current pose.
type Shape struct {
	Kind    components.ShapeKind
	Corners [4]r2.Vec // rect only, counter-clockwise
	Centre  r2.Vec    // circle only
	Radius  float64   // circle only
	Bounds  r2.Box
}

// shapeOps is the per-kind capability entry.
type shapeOps struct {
	bake       func(pos r2.Vec, rot components.Rotation, col components.Collider) Shape
	intersects func(s *Shape, l Line) bool
}

var shapeTable = [...]shapeOps{
	components.ShapeNone: {
		bake: func(pos r2.Vec, _ components.Rotation, _ components.Collider) Shape {
			return Shape{Kind: components.ShapeNone, Bounds: r2.Box{Min: pos, Max: pos}}
		},
		intersects: func(*Shape, Line) bool { return false },
	},
	components.ShapeRect: {
		bake:       bakeRect,
		intersects: rectIntersects,
	},
	components.ShapeCircle: {
		bake:       bakeCircle,
		intersects: circleIntersects,
	},
}

// BakeShape derives the collider geometry from a body pose.
// A rect spans [pos, pos+(w,h)] before rotation and turns about pos+rot.Center.
func BakeShape(pos r3.Vec, rot components.Rotation, col components.Collider) Shape {
	kind := col.Kind
	if int(kind) >= len(shapeTable) {
		kind = components.ShapeNone
	}
	return shapeTable[kind].bake(planar(pos), rot, col)
}

// Intersects reports whether the shape touches the segment.
func (s *Shape) Intersects(l Line) bool {
	kind := s.Kind
	if int(kind) >= len(shapeTable) {
		return false
	}
	if !boxesOverlap(s.Bounds, l.Bounds()) {
		return false
	}
	return shapeTable[kind].intersects(s, l)
}

func bakeRect(pos r2.Vec, rot components.Rotation, col components.Collider) Shape {
	pivot := r2.Add(pos, rot.Center)
	local := [4]r2.Vec{
		pos,
		{X: pos.X + col.Width, Y: pos.Y},
		{X: pos.X + col.Width, Y: pos.Y + col.Height},
		{X: pos.X, Y: pos.Y + col.Height},
	}
	s := Shape{Kind: components.ShapeRect}
	for i, p := range local {
		s.Corners[i] = rotateAround(p, pivot, rot.Angle)
	}
	s.Bounds = r2.Box{Min: s.Corners[0], Max: s.Corners[0]}
	for _, c := range s.Corners[1:] {
		s.Bounds.Min.X = math.Min(s.Bounds.Min.X, c.X)
		s.Bounds.Min.Y = math.Min(s.Bounds.Min.Y, c.Y)
		s.Bounds.Max.X = math.Max(s.Bounds.Max.X, c.X)
		s.Bounds.Max.Y = math.Max(s.Bounds.Max.Y, c.Y)
	}
	return s
}

func bakeCircle(pos r2.Vec, _ components.Rotation, col components.Collider) Shape {
	r := col.Radius
	return Shape{
		Kind:   components.ShapeCircle,
		Centre: pos,
		Radius: r,
		Bounds: r2.Box{
			Min: r2.Vec{X: pos.X - r, Y: pos.Y - r},
			Max: r2.Vec{X: pos.X + r, Y: pos.Y + r},
		},
	}
}

func rectIntersects(s *Shape, l Line) bool {
	for i := range s.Corners {
		edge := Line{A: s.Corners[i], B: s.Corners[(i+1)%4]}
		if segmentsIntersect(edge, l) {
			return true
		}
	}
	// Fully inside.
	return pointInQuad(s.Corners, l.A)
}

func circleIntersects(s *Shape, l Line) bool {
	return pointSegmentDistance(s.Centre, l) <= s.Radius
}

// orientation returns >0 for counter-clockwise, <0 for clockwise, 0 for collinear.
func orientation(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

func onSegment(p r2.Vec, l Line) bool {
	return p.X >= math.Min(l.A.X, l.B.X) && p.X <= math.Max(l.A.X, l.B.X) &&
		p.Y >= math.Min(l.A.Y, l.B.Y) && p.Y <= math.Max(l.A.Y, l.B.Y)
}

// segmentsIntersect reports whether two closed segments share a point.
func segmentsIntersect(p, q Line) bool {
	d1 := orientation(q.A, q.B, p.A)
	d2 := orientation(q.A, q.B, p.B)
	d3 := orientation(p.A, p.B, q.A)
	d4 := orientation(p.A, p.B, q.B)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(p.A, q):
		return true
	case d2 == 0 && onSegment(p.B, q):
		return true
	case d3 == 0 && onSegment(q.A, p):
		return true
	case d4 == 0 && onSegment(q.B, p):
		return true
	}
	return false
}

// segmentIntersection returns the parameter t along p at which p meets q.
func segmentIntersection(p, q Line) (float64, bool) {
	r := r2.Sub(p.B, p.A)
	s := r2.Sub(q.B, q.A)
	denom := r2.Cross(r, s)
	if denom == 0 {
		return 0, false
	}
	qp := r2.Sub(q.A, p.A)
	t := r2.Cross(qp, s) / denom
	u := r2.Cross(qp, r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

func pointInQuad(quad [4]r2.Vec, p r2.Vec) bool {
	var pos, neg bool
	for i := range quad {
		o := orientation(quad[i], quad[(i+1)%4], p)
		if o > 0 {
			pos = true
		}
		if o < 0 {
			neg = true
		}
	}
	return !(pos && neg)
}

func pointSegmentDistance(p r2.Vec, l Line) float64 {
	d := r2.Sub(l.B, l.A)
	lenSq := r2.Dot(d, d)
	if lenSq == 0 {
		return r2.Norm(r2.Sub(p, l.A))
	}
	t := clamp01(r2.Dot(r2.Sub(p, l.A), d) / lenSq)
	closest := r2.Add(l.A, r2.Scale(t, d))
	return r2.Norm(r2.Sub(p, closest))
}
