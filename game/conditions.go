package game

// Condition is a finishing condition evaluated after every step.
type Condition func(e *PhysicsEngine) bool

// AllCarsDead finishes once every spawned car is dead. With no cars it is
// immediately true.
func AllCarsDead(e *PhysicsEngine) bool {
	for _, c := range e.cars {
		if !c.Dead() {
			return false
		}
	}
	return true
}

// TimeLimit finishes once the iteration counter reaches n.
func TimeLimit(n int) Condition {
	return func(e *PhysicsEngine) bool {
		return e.Iteration() >= n
	}
}

// Any finishes when any of conds does. Nil entries are skipped.
func Any(conds ...Condition) Condition {
	return func(e *PhysicsEngine) bool {
		for _, c := range conds {
			if c != nil && c(e) {
				return true
			}
		}
		return false
	}
}
