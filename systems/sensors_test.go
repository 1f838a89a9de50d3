package systems

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFanSensors(t *testing.T) {
	sensors := FanSensors(NumSensors, 100, math.Pi)
	if len(sensors) != NumSensors {
		t.Fatalf("got %d sensors", len(sensors))
	}
	if math.Abs(sensors[0].Offset+math.Pi/2) > 1e-12 || math.Abs(sensors[NumSensors-1].Offset-math.Pi/2) > 1e-12 {
		t.Errorf("fan edges = %f, %f", sensors[0].Offset, sensors[NumSensors-1].Offset)
	}
	if sensors[NumSensors/2].Offset != 0 {
		t.Errorf("middle sensor offset = %f, want 0", sensors[NumSensors/2].Offset)
	}

	single := FanSensors(1, 50, math.Pi)
	if single[0].Offset != 0 || single[0].Length != 50 {
		t.Errorf("single sensor = %+v", single[0])
	}
}

func TestSense(t *testing.T) {
	// Wall 25 units ahead along +X.
	q := BakeQuadtree([]Line{{A: r2.Vec{X: 25, Y: -100}, B: r2.Vec{X: 25, Y: 100}}})
	sensors := []ProximitySensor{
		{Offset: 0, Length: 100},
		{Offset: math.Pi, Length: 100},
	}

	readings := Sense(q, r2.Vec{}, 0, sensors, nil)
	if len(readings) != 2 {
		t.Fatalf("got %d readings", len(readings))
	}
	if math.Abs(readings[0].Distance-25) > 1e-9 || math.Abs(readings[0].Value-0.25) > 1e-9 {
		t.Errorf("forward reading = %+v", readings[0])
	}
	if readings[1].Distance != 100 || readings[1].Value != 1 {
		t.Errorf("backward reading = %+v", readings[1])
	}
	if end := readings[0].End(); math.Abs(end.X-25) > 1e-9 {
		t.Errorf("End = %v", end)
	}

	// nil caster reads clear.
	clean := Sense(nil, r2.Vec{}, 0, sensors, readings)
	for i, r := range clean {
		if r.Value != 1 {
			t.Errorf("reading %d = %f with no geometry", i, r.Value)
		}
	}
}

func TestApplyDrive(t *testing.T) {
	params := DriveParams{EngineForce: 100, BrakeForce: 1000, Drag: 0, MaxSteer: 1}

	t.Run("engine force on driven wheels", func(t *testing.T) {
		w := NewBodyWorld()
		chassis := w.NewBody(BodySpec{Mass: 8})
		left := w.NewBody(BodySpec{Mass: 1})
		right := w.NewBody(BodySpec{Mass: 1})
		w.AddChild(chassis, left)
		w.AddChild(chassis, right)

		w.ApplyDrive(chassis, []ecs.Entity{left, right}, Controls{Acceleration: 1}, params, DeltaT)

		if got := w.NetForce(chassis); !vecNear(got, r3.Vec{X: 100}, 1e-9) {
			t.Errorf("NetForce = %v, want (100,0,0)", got)
		}
		if got := w.Forces(left)[0]; !vecNear(got, r3.Vec{X: 50}, 1e-9) {
			t.Errorf("wheel force = %v", got)
		}
	})

	t.Run("brake cannot reverse", func(t *testing.T) {
		w := NewBodyWorld()
		chassis := w.NewBody(BodySpec{Mass: 10, Velocity: r3.Vec{X: 1}})

		w.ApplyDrive(chassis, nil, Controls{Brake: 1}, params, DeltaT)
		w.Step(chassis, DeltaT)

		if v := w.Velocity(chassis).X; v < -1e-9 || v > 1e-9 {
			t.Errorf("velocity after full brake = %f, want 0", v)
		}
	})

	t.Run("steering needs speed", func(t *testing.T) {
		w := NewBodyWorld()
		parked := w.NewBody(BodySpec{Mass: 1})
		moving := w.NewBody(BodySpec{Mass: 1, Velocity: r3.Vec{X: 2 * steerSpeed}})

		w.ApplyDrive(parked, nil, Controls{Steering: 1}, params, DeltaT)
		w.ApplyDrive(moving, nil, Controls{Steering: 1}, params, DeltaT)

		if w.Rotation(parked) != 0 {
			t.Errorf("parked car turned by %f", w.Rotation(parked))
		}
		if got := w.Rotation(moving); math.Abs(got-DeltaT) > 1e-12 {
			t.Errorf("moving car turned by %f, want %f", got, DeltaT)
		}
	})

	t.Run("controls are clamped", func(t *testing.T) {
		c := Controls{Acceleration: 2, Brake: -1, Steering: -3}.Clamped()
		if c != (Controls{Acceleration: 1, Brake: 0, Steering: -1}) {
			t.Errorf("Clamped = %+v", c)
		}
	})
}
