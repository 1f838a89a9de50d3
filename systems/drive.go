package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// steerSpeed is the speed at which steering reaches full authority.
const steerSpeed = 10.0

// Controls is a control command: Acceleration and Brake in [0, 1],
// Steering in [-1, 1].
type Controls struct {
	Acceleration float64
	Brake        float64
	Steering     float64
}

// Clamped returns c with every value clamped to its range.
func (c Controls) Clamped() Controls {
	return Controls{
		Acceleration: clamp01(c.Acceleration),
		Brake:        clamp01(c.Brake),
		Steering:     clampFloat(c.Steering, -1, 1),
	}
}

// DriveParams are the vehicle force parameters.
type DriveParams struct {
	EngineForce float64
	BrakeForce  float64
	Drag        float64
	MaxSteer    float64 // radians per time unit at full lock
}

// ApplyDrive adds this step's drive forces to a vehicle. Engine force is
// split over the driven wheels along the chassis heading; braking and drag
// act on the chassis against its velocity. Braking is capped so it cannot
// reverse the vehicle within one step. Steering becomes an angular force on
// the chassis, applied by Turn.
func (w *BodyWorld) ApplyDrive(chassis ecs.Entity, driven []ecs.Entity, c Controls, p DriveParams, dt float64) {
	c = c.Clamped()
	h := Heading(w.Rotation(chassis))
	dir := r3.Vec{X: h.X, Y: h.Y}

	if c.Acceleration > 0 && len(driven) > 0 {
		per := c.Acceleration * p.EngineForce / float64(len(driven))
		for _, wheel := range driven {
			w.AddForce(wheel, r3.Scale(per, dir))
		}
	}

	vel := w.Velocity(chassis)
	speed := r3.Norm(vel)
	if speed > 0 {
		if c.Brake > 0 {
			limit := speed * w.TotalMass(chassis) / dt
			mag := c.Brake * p.BrakeForce
			if mag > limit {
				mag = limit
			}
			w.AddForce(chassis, r3.Scale(-mag/speed, vel))
		}
		if p.Drag > 0 {
			w.AddForce(chassis, r3.Scale(-p.Drag, vel))
		}
	}

	if c.Steering != 0 {
		authority := speed / steerSpeed
		if authority > 1 {
			authority = 1
		}
		w.AddAngularForce(chassis, r3.Vec{Z: c.Steering * p.MaxSteer * authority})
	}
}

// Speed returns the planar speed of the body.
func (w *BodyWorld) Speed(e ecs.Entity) float64 {
	v := w.Velocity(e)
	return r3.Norm(r3.Vec{X: v.X, Y: v.Y})
}
