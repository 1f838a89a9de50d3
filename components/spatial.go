package components

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Position represents a body's world position. Z is kept for the weight
// vector and stays 0 for every planar body.
type Position struct {
	r3.Vec
}

// Velocity represents a body's velocity in world units per time unit.
type Velocity struct {
	r3.Vec
}

// Rotation represents a body's cumulative heading.
type Rotation struct {
	Angle  float64 // radians, cumulative (not wrapped)
	Center r2.Vec  // rotation centre, relative to Position
}
