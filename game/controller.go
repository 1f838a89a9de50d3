package game

import (
	"sync"

	"github.com/pthm-cable/laop/systems"
)

// Controls is a control command for one car.
type Controls = systems.Controls

// NumInputs is the length of the input vector a Controller receives: one
// value per proximity sensor followed by the normalised speed.
const NumInputs = systems.NumSensors + 1

// Controller decides a car's controls from its sensor inputs. Control is
// called once per step per car and may run concurrently for different cars.
type Controller interface {
	Control(inputs []float64) Controls
}

// ControllerFunc adapts a plain function to Controller.
type ControllerFunc func(inputs []float64) Controls

// Control calls f.
func (f ControllerFunc) Control(inputs []float64) Controls {
	return f(inputs)
}

// Constant returns a controller that always outputs c.
func Constant(c Controls) Controller {
	return ControllerFunc(func([]float64) Controls { return c })
}

// ManualController holds controls set from outside the physics loop, e.g. by
// a keyboard handler. Safe for concurrent use.
type ManualController struct {
	mu       sync.Mutex
	controls Controls
}

// Set replaces the current controls.
func (m *ManualController) Set(c Controls) {
	m.mu.Lock()
	m.controls = c.Clamped()
	m.mu.Unlock()
}

// SetAcceleration sets the throttle in [0, 1].
func (m *ManualController) SetAcceleration(v float64) {
	m.mu.Lock()
	m.controls.Acceleration = v
	m.controls = m.controls.Clamped()
	m.mu.Unlock()
}

// SetBrake sets the brake in [0, 1].
func (m *ManualController) SetBrake(v float64) {
	m.mu.Lock()
	m.controls.Brake = v
	m.controls = m.controls.Clamped()
	m.mu.Unlock()
}

// SetSteering sets the steering in [-1, 1].
func (m *ManualController) SetSteering(v float64) {
	m.mu.Lock()
	m.controls.Steering = v
	m.controls = m.controls.Clamped()
	m.mu.Unlock()
}

// Control returns the current controls; inputs are ignored.
func (m *ManualController) Control([]float64) Controls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controls
}

// Agent is the learner-facing view of one car.
type Agent struct {
	ID         int
	Controller Controller
	Inputs     []float64 // most recent controller inputs
	Fitness    float64
	Dead       bool
	Steps      int // iterations the car was alive
}
