package game

import (
	"context"
	"testing"

	"github.com/pthm-cable/laop/recording"
)

func TestManualController(t *testing.T) {
	var m ManualController
	if got := m.Control(nil); got != (Controls{}) {
		t.Errorf("zero value = %+v", got)
	}

	m.SetAcceleration(2)
	m.SetBrake(0.25)
	m.SetSteering(-5)
	want := Controls{Acceleration: 1, Brake: 0.25, Steering: -1}
	if got := m.Control(nil); got != want {
		t.Errorf("Control = %+v, want %+v", got, want)
	}

	m.Set(Controls{Steering: 0.5})
	if got := m.Control(nil); got != (Controls{Steering: 0.5}) {
		t.Errorf("after Set = %+v", got)
	}
}

func TestManualControllerDrivesCar(t *testing.T) {
	buffer := recording.NewBuffer()
	e := NewPhysicsEngine(buffer, buildMap(t, "empty"), testParams(t))
	ctrl := &ManualController{}
	car := e.SpawnCar(ctrl)
	e.SetTimeLimit(1 << 30)

	stopAt := 0
	e.OnStep(func(pe *PhysicsEngine) {
		switch pe.Iteration() {
		case 1:
			ctrl.SetAcceleration(1)
		case 40:
			ctrl.Set(Controls{Acceleration: 1, Steering: 1})
		case 80:
			stopAt = pe.Iteration()
			pe.Stop()
		}
	})
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if stopAt != 80 {
		t.Fatalf("stopped at %d", stopAt)
	}
	if car.Heading() <= 0 {
		t.Errorf("heading = %f, want a left turn", car.Heading())
	}
	if car.Controls() != (Controls{Acceleration: 1, Steering: 1}) {
		t.Errorf("last controls = %+v", car.Controls())
	}
}

func TestPolicyOverridesController(t *testing.T) {
	e := NewPhysicsEngine(nil, buildMap(t, "empty"), testParams(t))
	car := e.SpawnCar(Constant(Controls{Brake: 1}))

	var seen []Agent
	car.SetPolicy(func(a Agent) Controls {
		seen = append(seen, a)
		return Controls{Acceleration: 1}
	})
	e.SetTimeLimit(3)
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 5 {
		t.Fatalf("policy calls = %d, want 5", len(seen))
	}
	if len(seen[0].Inputs) != NumInputs || seen[0].Controller == nil {
		t.Errorf("agent = %+v", seen[0])
	}
	if car.Speed() <= 0 {
		t.Error("policy controls were not applied")
	}
}

func TestConditions(t *testing.T) {
	e := NewPhysicsEngine(nil, buildMap(t, "empty"), testParams(t))
	if !AllCarsDead(e) {
		t.Error("AllCarsDead with no cars should be true")
	}
	a := e.SpawnCar(nil)
	e.SpawnCar(nil)
	if AllCarsDead(e) {
		t.Error("live cars reported dead")
	}
	a.Kill()
	if AllCarsDead(e) || e.Alive() != 1 {
		t.Error("one car still alive")
	}

	if TimeLimit(0)(e) != true || TimeLimit(1)(e) != false {
		t.Error("TimeLimit wrong at iteration 0")
	}
	if Any()(e) || Any(nil, TimeLimit(5))(e) || !Any(TimeLimit(5), TimeLimit(0))(e) {
		t.Error("Any combined conditions wrong")
	}
}
