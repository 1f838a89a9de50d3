package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// clampFloat clamps a value between min and max.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a value to the [0, 1] range.
func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

// rotateZ rotates v about the Z axis by angle radians. Z is left unchanged.
func rotateZ(v r3.Vec, angle float64) r3.Vec {
	s, c := math.Sincos(angle)
	return r3.Vec{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c, Z: v.Z}
}

// rotateAround rotates p about pivot by angle radians.
func rotateAround(p, pivot r2.Vec, angle float64) r2.Vec {
	s, c := math.Sincos(angle)
	d := r2.Sub(p, pivot)
	return r2.Vec{X: pivot.X + d.X*c - d.Y*s, Y: pivot.Y + d.X*s + d.Y*c}
}

// planar drops the Z component.
func planar(v r3.Vec) r2.Vec {
	return r2.Vec{X: v.X, Y: v.Y}
}

// Heading returns the unit vector pointing along angle.
func Heading(angle float64) r2.Vec {
	s, c := math.Sincos(angle)
	return r2.Vec{X: c, Y: s}
}

// boxesOverlap reports whether two axis-aligned boxes intersect (touching counts).
func boxesOverlap(a, b r2.Box) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y
}

// boxContains reports whether inner lies entirely inside outer.
func boxContains(outer, inner r2.Box) bool {
	return inner.Min.X >= outer.Min.X && inner.Max.X <= outer.Max.X &&
		inner.Min.Y >= outer.Min.Y && inner.Max.Y <= outer.Max.Y
}
