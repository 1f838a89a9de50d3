package components

import (
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// Body holds the physical properties of a rigid body.
// Mass must be > 0; integration divides by it without checking.
type Body struct {
	Mass float64
}

// Forces holds the forces accumulated for the current step.
type Forces struct {
	Linear  []r3.Vec
	Angular []r3.Vec
}

// Hierarchy links a body to its parent and its ordered sub-bodies.
// Children move rigidly with the parent: they inherit its velocity every step.
type Hierarchy struct {
	Parent    ecs.Entity
	HasParent bool
	Children  []ecs.Entity
}

// ShapeKind tags the collider geometry.
type ShapeKind uint8

const (
	ShapeNone ShapeKind = iota // no collision geometry (e.g. wheels)
	ShapeRect                  // Width x Height rectangle anchored at Position
	ShapeCircle                // Radius circle centred on Position
)

// String returns the display name for a ShapeKind.
func (k ShapeKind) String() string {
	switch k {
	case ShapeRect:
		return "rect"
	case ShapeCircle:
		return "circle"
	default:
		return "none"
	}
}

// Collider holds the shape parameters and the collision cooldown stamp.
// The derived geometry is recomputed from Position and Rotation on demand.
type Collider struct {
	Kind   ShapeKind
	Width  float64
	Height float64
	Radius float64

	// StopCheckingAt is the wall-clock time of the last collision response.
	StopCheckingAt time.Time
}
