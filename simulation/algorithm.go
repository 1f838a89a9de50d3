// Package simulation drives generation-based training on top of the physics
// loop: an Orchestrator runs one training session, an Engine runs every
// configured session and then tests the trained learners.
package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/pthm-cable/laop/game"
)

var (
	// ErrUnknownAlgorithm is returned when a session names an algorithm key
	// that is not registered.
	ErrUnknownAlgorithm = errors.New("unknown learning algorithm")

	// ErrUnsupportedEnvironment is returned when the configured environment
	// is registered but cannot be run.
	ErrUnsupportedEnvironment = errors.New("unsupported environment")
)

// LearningAlgorithm turns an evaluated population into the next one.
type LearningAlgorithm interface {
	// NewController returns a freshly initialised controller for the first
	// generation of an epoch.
	NewController() game.Controller

	// Init is called with the spawned cars before every generation starts.
	Init(cars []*game.Car)

	// Learn produces the next generation's controllers from the evaluated
	// population. The returned slice may differ in length from the input.
	Learn(population []game.Agent) ([]game.Controller, error)

	// Test decides the controls for agent outside of training.
	Test(agent game.Agent) game.Controls

	// Best returns the best controller seen so far, or nil before any
	// generation was evaluated.
	Best() game.Controller
}

// AlgorithmFactory builds a learning algorithm for one session.
type AlgorithmFactory func(rng *rand.Rand) (LearningAlgorithm, error)

// Registry maps a configuration key to an algorithm factory.
type Registry map[string]AlgorithmFactory

// New builds the algorithm registered under key.
func (r Registry) New(key string, rng *rand.Rand) (LearningAlgorithm, error) {
	f, ok := r[key]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownAlgorithm, key, r.Keys())
	}
	la, err := f(rng)
	if err != nil {
		return nil, fmt.Errorf("building learning algorithm %q: %w", key, err)
	}
	return la, nil
}

// Keys returns the registered keys in sorted order.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
