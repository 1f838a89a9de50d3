package systems

import (
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// CanCollide reports whether the body's collision cooldown has expired at now.
func (w *BodyWorld) CanCollide(e ecs.Entity, now time.Time) bool {
	return now.Sub(w.colliderMap.Get(e).StopCheckingAt) > CollisionCooldown
}

// Bounce applies the bounce-back response if the cooldown allows it: stamp
// the cooldown, zero the velocity, negate every force in the body's tree.
// It reports whether a response was applied.
func (w *BodyWorld) Bounce(e ecs.Entity, now time.Time) bool {
	if !w.CanCollide(e, now) {
		return false
	}
	w.colliderMap.Get(e).StopCheckingAt = now
	for _, b := range w.Subtree(e) {
		w.ResetVelocity(b)
		forces := w.forceMap.Get(b)
		for i, f := range forces.Linear {
			forces.Linear[i] = r3.Scale(-1, f)
		}
		for i, f := range forces.Angular {
			forces.Angular[i] = r3.Scale(-1, f)
		}
	}
	return true
}
