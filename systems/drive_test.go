package systems

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSteeringIsAngularForce(t *testing.T) {
	p := DriveParams{EngineForce: 100, MaxSteer: 2}

	tests := []struct {
		name     string
		speed    float64
		steering float64
		wantRate float64
	}{
		{"standing still", 0, 1, 0},
		{"half authority", steerSpeed / 2, 1, 1},
		{"full lock left", steerSpeed * 3, 1, 2},
		{"full lock right", steerSpeed * 3, -1, -2},
		{"clamped input", steerSpeed * 3, 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewBodyWorld()
			chassis := w.NewBody(BodySpec{Mass: 10, Velocity: r3.Vec{X: tt.speed}})
			wheel := w.NewBody(BodySpec{Mass: 1})
			w.AddChild(chassis, wheel)

			w.ApplyDrive(chassis, []ecs.Entity{wheel}, Controls{Acceleration: 1, Steering: tt.steering}, p, DeltaT)
			if got := w.NetAngularForce(chassis).Z; math.Abs(got-tt.wantRate) > eps {
				t.Fatalf("turn rate = %f, want %f", got, tt.wantRate)
			}
			if w.Rotation(chassis) != 0 {
				t.Fatal("ApplyDrive rotated the body before Turn")
			}

			w.Turn(chassis, DeltaT)
			angle := tt.wantRate * DeltaT
			if got := w.Rotation(chassis); math.Abs(got-angle) > eps {
				t.Errorf("rotation = %f, want %f", got, angle)
			}
			// The engine force on the wheel turns with the chassis.
			f := w.Forces(wheel)[0]
			want := r3.Vec{X: 100 * math.Cos(angle), Y: 100 * math.Sin(angle)}
			if !vecNear(f, want, 1e-6) {
				t.Errorf("wheel force = %v, want %v", f, want)
			}
		})
	}
}

func TestResetForcesClearsSteering(t *testing.T) {
	w := NewBodyWorld()
	chassis := w.NewBody(BodySpec{Mass: 10, Velocity: r3.Vec{X: 50}})
	w.ApplyDrive(chassis, nil, Controls{Steering: 1}, DriveParams{MaxSteer: 1}, DeltaT)
	w.ResetForces(chassis)
	w.Turn(chassis, DeltaT)
	if w.Rotation(chassis) != 0 {
		t.Errorf("rotation after reset = %f", w.Rotation(chassis))
	}
}
