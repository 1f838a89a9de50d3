// Package systems contains the rigid-body integrator, collision geometry and
// vehicle systems that run on top of the ECS world.
package systems

import (
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/laop/components"
)

const (
	// DeltaT is the fixed integration step in simulated time units.
	DeltaT = 0.05
	// Gravity is the magnitude of gravitational acceleration.
	Gravity = 9.8
	// CollisionCooldown is how long a body ignores further collision responses.
	CollisionCooldown = 100 * time.Millisecond
)

// BodySpec describes a body to create.
type BodySpec struct {
	Position r3.Vec
	Velocity r3.Vec
	Mass     float64
	Angle    float64
	Center   r2.Vec // rotation centre relative to Position
	Collider components.Collider
}

// BodyWorld is an arena of rigid bodies stored as ECS entities.
// It is not safe for concurrent use; a single physics loop owns it.
type BodyWorld struct {
	world *ecs.World

	bodyMapper *ecs.Map7[
		components.Position,
		components.Velocity,
		components.Body,
		components.Rotation,
		components.Forces,
		components.Hierarchy,
		components.Collider,
	]

	forceFilter *ecs.Filter1[components.Forces]

	posMap      *ecs.Map1[components.Position]
	velMap      *ecs.Map1[components.Velocity]
	bodyMap     *ecs.Map1[components.Body]
	rotMap      *ecs.Map1[components.Rotation]
	forceMap    *ecs.Map1[components.Forces]
	hierMap     *ecs.Map1[components.Hierarchy]
	colliderMap *ecs.Map1[components.Collider]

	count int
}

// NewBodyWorld creates an empty body arena.
func NewBodyWorld() *BodyWorld {
	world := ecs.NewWorld()
	return &BodyWorld{
		world: world,
		bodyMapper: ecs.NewMap7[
			components.Position,
			components.Velocity,
			components.Body,
			components.Rotation,
			components.Forces,
			components.Hierarchy,
			components.Collider,
		](world),
		forceFilter: ecs.NewFilter1[components.Forces](world),
		posMap:      ecs.NewMap1[components.Position](world),
		velMap:      ecs.NewMap1[components.Velocity](world),
		bodyMap:     ecs.NewMap1[components.Body](world),
		rotMap:      ecs.NewMap1[components.Rotation](world),
		forceMap:    ecs.NewMap1[components.Forces](world),
		hierMap:     ecs.NewMap1[components.Hierarchy](world),
		colliderMap: ecs.NewMap1[components.Collider](world),
	}
}

// NewBody creates a root body with no forces and no children.
func (w *BodyWorld) NewBody(spec BodySpec) ecs.Entity {
	pos := components.Position{Vec: spec.Position}
	vel := components.Velocity{Vec: spec.Velocity}
	body := components.Body{Mass: spec.Mass}
	rot := components.Rotation{Angle: spec.Angle, Center: spec.Center}
	forces := components.Forces{}
	hier := components.Hierarchy{}
	col := spec.Collider
	w.count++
	return w.bodyMapper.NewEntity(&pos, &vel, &body, &rot, &forces, &hier, &col)
}

// AddChild attaches child to parent. The child must be a root body.
func (w *BodyWorld) AddChild(parent, child ecs.Entity) {
	ph := w.hierMap.Get(parent)
	ph.Children = append(ph.Children, child)
	ch := w.hierMap.Get(child)
	ch.Parent = parent
	ch.HasParent = true
}

// Alive reports whether e is a body in this arena.
func (w *BodyWorld) Alive(e ecs.Entity) bool {
	return w.world.Alive(e)
}

// Len returns the number of bodies created.
func (w *BodyWorld) Len() int {
	return w.count
}

// AddForce appends a linear force to the body's own list.
func (w *BodyWorld) AddForce(e ecs.Entity, f r3.Vec) {
	forces := w.forceMap.Get(e)
	forces.Linear = append(forces.Linear, f)
}

// AddAngularForce appends an angular force to the body's own list. Its Z
// component is a turn rate in radians per time unit.
func (w *BodyWorld) AddAngularForce(e ecs.Entity, f r3.Vec) {
	forces := w.forceMap.Get(e)
	forces.Angular = append(forces.Angular, f)
}

// Forces returns a copy of the body's own linear forces.
func (w *BodyWorld) Forces(e ecs.Entity) []r3.Vec {
	return append([]r3.Vec(nil), w.forceMap.Get(e).Linear...)
}

// NetForce returns the sum of the body's own linear forces and, recursively,
// the net forces of all its sub-bodies.
func (w *BodyWorld) NetForce(e ecs.Entity) r3.Vec {
	var sum r3.Vec
	for _, f := range w.forceMap.Get(e).Linear {
		sum = r3.Add(sum, f)
	}
	for _, c := range w.hierMap.Get(e).Children {
		sum = r3.Add(sum, w.NetForce(c))
	}
	return sum
}

// NetAngularForce is NetForce for the angular list.
func (w *BodyWorld) NetAngularForce(e ecs.Entity) r3.Vec {
	var sum r3.Vec
	for _, f := range w.forceMap.Get(e).Angular {
		sum = r3.Add(sum, f)
	}
	for _, c := range w.hierMap.Get(e).Children {
		sum = r3.Add(sum, w.NetAngularForce(c))
	}
	return sum
}

// Step advances the body by dt with semi-implicit Euler: a = F/m from the
// tree-summed net force, v += a*dt, then p += v*dt using the new velocity.
// Each sub-body then takes the parent's velocity and steps itself.
func (w *BodyWorld) Step(e ecs.Entity, dt float64) {
	net := w.NetForce(e)
	mass := w.bodyMap.Get(e).Mass
	vel := w.velMap.Get(e)
	pos := w.posMap.Get(e)

	acc := r3.Scale(1/mass, net)
	vel.Vec = r3.Add(vel.Vec, r3.Scale(dt, acc))
	pos.Vec = r3.Add(pos.Vec, r3.Scale(dt, vel.Vec))

	parentVel := vel.Vec
	for _, c := range w.hierMap.Get(e).Children {
		w.velMap.Get(c).Vec = parentVel
		w.Step(c, dt)
	}
}

// Turn rotates the body by the Z component of its tree-summed angular force
// times dt.
func (w *BodyWorld) Turn(e ecs.Entity, dt float64) {
	w.Rotate(e, w.NetAngularForce(e).Z*dt)
}

// Rotate adds angle to the body's rotation and re-projects every force
// vector of the body and its sub-bodies by the same angle, so forces stay
// fixed relative to the body.
func (w *BodyWorld) Rotate(e ecs.Entity, angle float64) {
	if angle == 0 {
		return
	}
	w.rotMap.Get(e).Angle += angle
	w.rotateForces(e, angle)
}

func (w *BodyWorld) rotateForces(e ecs.Entity, angle float64) {
	forces := w.forceMap.Get(e)
	for i := range forces.Linear {
		forces.Linear[i] = rotateZ(forces.Linear[i], angle)
	}
	for i := range forces.Angular {
		forces.Angular[i] = rotateZ(forces.Angular[i], angle)
	}
	for _, c := range w.hierMap.Get(e).Children {
		w.rotateForces(c, angle)
	}
}

// ResetForces clears the body's own force lists. Sub-bodies are untouched.
func (w *BodyWorld) ResetForces(e ecs.Entity) {
	forces := w.forceMap.Get(e)
	forces.Linear = forces.Linear[:0]
	forces.Angular = forces.Angular[:0]
}

// ResetAllForces clears the force lists of every body in the arena.
func (w *BodyWorld) ResetAllForces() {
	query := w.forceFilter.Query()
	for query.Next() {
		forces := query.Get()
		forces.Linear = forces.Linear[:0]
		forces.Angular = forces.Angular[:0]
	}
}

// ResetVelocity zeroes the body's velocity.
func (w *BodyWorld) ResetVelocity(e ecs.Entity) {
	w.velMap.Get(e).Vec = r3.Vec{}
}

// Weight returns the body's weight vector (0, 0, -m*g).
func (w *BodyWorld) Weight(e ecs.Entity) r3.Vec {
	return r3.Vec{Z: -w.bodyMap.Get(e).Mass * Gravity}
}

// Position returns the body's position.
func (w *BodyWorld) Position(e ecs.Entity) r3.Vec {
	return w.posMap.Get(e).Vec
}

// SetPosition overwrites the body's position.
func (w *BodyWorld) SetPosition(e ecs.Entity, p r3.Vec) {
	w.posMap.Get(e).Vec = p
}

// Velocity returns the body's velocity.
func (w *BodyWorld) Velocity(e ecs.Entity) r3.Vec {
	return w.velMap.Get(e).Vec
}

// SetVelocity overwrites the body's velocity.
func (w *BodyWorld) SetVelocity(e ecs.Entity, v r3.Vec) {
	w.velMap.Get(e).Vec = v
}

// Rotation returns the body's cumulative rotation.
func (w *BodyWorld) Rotation(e ecs.Entity) float64 {
	return w.rotMap.Get(e).Angle
}

// Mass returns the body's own mass.
func (w *BodyWorld) Mass(e ecs.Entity) float64 {
	return w.bodyMap.Get(e).Mass
}

// TotalMass returns the mass of the body and all its sub-bodies.
func (w *BodyWorld) TotalMass(e ecs.Entity) float64 {
	m := w.bodyMap.Get(e).Mass
	for _, c := range w.hierMap.Get(e).Children {
		m += w.TotalMass(c)
	}
	return m
}

// Children returns the body's direct sub-bodies in insertion order.
func (w *BodyWorld) Children(e ecs.Entity) []ecs.Entity {
	return append([]ecs.Entity(nil), w.hierMap.Get(e).Children...)
}

// Parent returns the body's parent, if any.
func (w *BodyWorld) Parent(e ecs.Entity) (ecs.Entity, bool) {
	h := w.hierMap.Get(e)
	return h.Parent, h.HasParent
}

// Subtree returns the body followed by all its descendants, depth first.
func (w *BodyWorld) Subtree(e ecs.Entity) []ecs.Entity {
	out := []ecs.Entity{e}
	for _, c := range w.hierMap.Get(e).Children {
		out = append(out, w.Subtree(c)...)
	}
	return out
}

// Collider returns the body's collider.
func (w *BodyWorld) Collider(e ecs.Entity) components.Collider {
	return *w.colliderMap.Get(e)
}

// Shape bakes the body's collider at its current position and rotation.
func (w *BodyWorld) Shape(e ecs.Entity) Shape {
	return BakeShape(w.posMap.Get(e).Vec, *w.rotMap.Get(e), *w.colliderMap.Get(e))
}
