package game

import (
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/laop/components"
	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/recording"
	"github.com/pthm-cable/laop/systems"
)

// progressEpsilon is the minimum fitness gain that counts as progress.
const progressEpsilon = 1e-3

// CarParams holds the vehicle parameters shared by every car in a run.
type CarParams struct {
	Width, Height   float64
	Mass, WheelMass float64
	WheelInset      float64
	Drive           systems.DriveParams
	Sensors         []systems.ProximitySensor
	KillOnCollision bool
	IdleLimit       int // iterations without progress before death, 0 disables
}

// CarParamsFromConfig builds CarParams from the loaded config.
func CarParamsFromConfig(cfg *config.Config) CarParams {
	c := cfg.Car
	return CarParams{
		Width:      c.Width,
		Height:     c.Height,
		Mass:       c.Mass,
		WheelMass:  c.WheelMass,
		WheelInset: cfg.Derived.WheelInset,
		Drive: systems.DriveParams{
			EngineForce: c.EngineForce,
			BrakeForce:  c.BrakeForce,
			Drag:        c.Drag,
			MaxSteer:    c.MaxSteer,
		},
		Sensors:         systems.FanSensors(systems.NumSensors, c.SensorLength, c.SensorSpread),
		KillOnCollision: cfg.Physics.KillOnCollision,
		IdleLimit:       cfg.Physics.IdleLimit,
	}
}

// maxSpeed is the terminal speed at full throttle, used to normalise speed.
func (p *CarParams) maxSpeed() float64 {
	if p.Drive.Drag > 0 {
		return p.Drive.EngineForce / p.Drive.Drag
	}
	return p.Drive.EngineForce
}

// Wheel indices.
const (
	WheelFrontLeft = iota
	WheelFrontRight
	WheelRearLeft
	WheelRearRight
)

// Car is a chassis body with four wheel sub-bodies, proximity sensors and a
// controller. Cars are owned by one PhysicsEngine and mutated only by its loop.
type Car struct {
	ID int

	world   *systems.BodyWorld
	m       *maps.Map
	params  *CarParams
	clock   func() time.Time
	chassis ecs.Entity
	wheels  [4]ecs.Entity

	controller Controller
	policy     func(Agent) Controls

	readings []systems.SensorReading
	inputs   []float64
	controls Controls

	dead         bool
	bounced      bool
	collisions   int
	fitness      float64
	steps        int
	lastProgress int
}

func newCar(id int, world *systems.BodyWorld, m *maps.Map, params *CarParams, clock func() time.Time, ctrl Controller) *Car {
	half := r2.Vec{X: params.Width / 2, Y: params.Height / 2}
	anchor := r2.Sub(m.Start, half)

	chassis := world.NewBody(systems.BodySpec{
		Position: r3.Vec{X: anchor.X, Y: anchor.Y},
		Mass:     params.Mass,
		Angle:    m.StartHeading,
		Center:   half,
		Collider: components.Collider{
			Kind:   components.ShapeRect,
			Width:  params.Width,
			Height: params.Height,
		},
	})

	c := &Car{
		ID:         id,
		world:      world,
		m:          m,
		params:     params,
		clock:      clock,
		chassis:    chassis,
		controller: ctrl,
		inputs:     make([]float64, NumInputs),
	}

	in := params.WheelInset
	offsets := [4]r2.Vec{
		WheelFrontLeft:  {X: params.Width - in, Y: params.Height},
		WheelFrontRight: {X: params.Width - in, Y: 0},
		WheelRearLeft:   {X: in, Y: params.Height},
		WheelRearRight:  {X: in, Y: 0},
	}
	for i, off := range offsets {
		p := r2.Add(anchor, off)
		wheel := world.NewBody(systems.BodySpec{
			Position: r3.Vec{X: p.X, Y: p.Y},
			Mass:     params.WheelMass,
		})
		world.AddChild(chassis, wheel)
		c.wheels[i] = wheel
	}
	return c
}

// Controller returns the car's controller.
func (c *Car) Controller() Controller {
	return c.controller
}

// SetPolicy overrides the controller with fn, which receives the car's agent
// view every step. Used to let a learner drive in test episodes.
func (c *Car) SetPolicy(fn func(Agent) Controls) {
	c.policy = fn
}

// Dead reports whether the car has stopped participating.
func (c *Car) Dead() bool {
	return c.dead
}

// Kill marks the car dead.
func (c *Car) Kill() {
	c.dead = true
}

// Fitness returns the farthest distance from the map start reached so far.
func (c *Car) Fitness() float64 {
	return c.fitness
}

// Collisions returns the number of collision responses applied.
func (c *Car) Collisions() int {
	return c.collisions
}

// Centre returns the chassis centre.
func (c *Car) Centre() r2.Vec {
	p := c.world.Position(c.chassis)
	return r2.Vec{X: p.X + c.params.Width/2, Y: p.Y + c.params.Height/2}
}

// Heading returns the chassis rotation.
func (c *Car) Heading() float64 {
	return c.world.Rotation(c.chassis)
}

// Speed returns the chassis planar speed.
func (c *Car) Speed() float64 {
	return c.world.Speed(c.chassis)
}

// Chassis returns the chassis body.
func (c *Car) Chassis() ecs.Entity {
	return c.chassis
}

// Wheels returns the wheel bodies, indexed by the Wheel constants.
func (c *Car) Wheels() [4]ecs.Entity {
	return c.wheels
}

// Controls returns the controls decided in the last step.
func (c *Car) Controls() Controls {
	return c.controls
}

// Inputs returns a copy of the last controller inputs.
func (c *Car) Inputs() []float64 {
	return append([]float64(nil), c.inputs...)
}

// Agent returns the learner-facing view of the car.
func (c *Car) Agent() Agent {
	return Agent{
		ID:         c.ID,
		Controller: c.controller,
		Inputs:     c.Inputs(),
		Fitness:    c.fitness,
		Dead:       c.dead,
		Steps:      c.steps,
	}
}

// carPose is the read-only state a car needs to sense and decide.
type carPose struct {
	Centre  r2.Vec
	Heading float64
	Speed   float64
}

func (c *Car) pose() carPose {
	return carPose{Centre: c.Centre(), Heading: c.Heading(), Speed: c.Speed()}
}

// think reads the sensors from pose and decides this step's controls. It
// touches only the car's own buffers, the read-only map and its controller.
func (c *Car) think(p carPose) {
	c.readings = systems.Sense(c.m, p.Centre, p.Heading, c.params.Sensors, c.readings)
	for i, r := range c.readings {
		if i < len(c.inputs)-1 {
			c.inputs[i] = r.Value
		}
	}
	speed := p.Speed / c.params.maxSpeed()
	if speed > 1 {
		speed = 1
	}
	c.inputs[len(c.inputs)-1] = speed

	switch {
	case c.policy != nil:
		c.controls = c.policy(c.Agent()).Clamped()
	case c.controller != nil:
		c.controls = c.controller.Control(c.inputs).Clamped()
	default:
		c.controls = Controls{}
	}
}

// drive applies this step's forces. After a bounce the negated forces are
// kept for one step so the car is pushed back.
func (c *Car) drive(dt float64) {
	if c.bounced {
		c.bounced = false
		return
	}
	for _, b := range c.world.Subtree(c.chassis) {
		c.world.ResetForces(b)
	}
	c.world.ApplyDrive(c.chassis, c.wheels[WheelRearLeft:], c.controls, c.params.Drive, dt)
}

// integrate turns the car by its steering and advances its body tree by dt.
func (c *Car) integrate(dt float64) {
	c.world.Turn(c.chassis, dt)
	c.world.Step(c.chassis, dt)
}

// progress updates fitness and applies the idle limit.
func (c *Car) progress(iteration int) {
	if c.dead {
		return
	}
	c.steps++
	d := c.m.DistanceFromStart(c.Centre())
	if d > c.fitness+progressEpsilon {
		c.fitness = d
		c.lastProgress = iteration
		return
	}
	if c.params.IdleLimit > 0 && iteration-c.lastProgress >= c.params.IdleLimit {
		c.dead = true
	}
}

// Shape returns the chassis collider at its current pose.
func (c *Car) Shape() systems.Shape {
	return c.world.Shape(c.chassis)
}

// CollideWith responds to an intersection with a wall.
func (c *Car) CollideWith(systems.Line) {
	if !c.world.Bounce(c.chassis, c.clock()) {
		return
	}
	c.bounced = true
	c.collisions++
	if c.params.KillOnCollision {
		c.dead = true
	}
}

// Data returns the car's recorded state.
func (c *Car) Data() recording.CarData {
	centre := c.Centre()
	d := recording.CarData{
		ID:       c.ID,
		X:        centre.X,
		Y:        centre.Y,
		Rotation: c.Heading(),
		Width:    c.params.Width,
		Height:   c.params.Height,
		Speed:    c.Speed(),
		Fitness:  c.fitness,
		Dead:     c.dead,
		Sensors:  make([]recording.SensorData, len(c.readings)),
	}
	for i, r := range c.readings {
		d.Sensors[i] = recording.SensorData{
			X:        r.Start.X,
			Y:        r.Start.Y,
			Angle:    r.Angle,
			Length:   r.Length,
			Distance: r.Distance,
			Value:    r.Value,
		}
	}
	return d
}
