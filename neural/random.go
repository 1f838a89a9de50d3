package neural

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/laop/game"
)

// RandomSearch keeps the best network it has seen and refills the rest of
// the population with fresh random networks.
type RandomSearch struct {
	population int
	rng        *rand.Rand
	champ      champion
}

// NewRandomSearch creates a random-search learner.
func NewRandomSearch(rng *rand.Rand, population int) (*RandomSearch, error) {
	if population <= 0 {
		return nil, fmt.Errorf("random search: population must be > 0, got %d", population)
	}
	return &RandomSearch{population: population, rng: rng}, nil
}

// NewController returns a random network.
func (r *RandomSearch) NewController() game.Controller {
	return NewFFNN(r.rng)
}

// Init is a no-op.
func (r *RandomSearch) Init([]*game.Car) {}

// Learn returns the champion followed by population-1 random networks.
func (r *RandomSearch) Learn(population []game.Agent) ([]game.Controller, error) {
	ranked := rank(population)
	if len(ranked) == 0 {
		return nil, ErrNoNetworks
	}
	r.champ.consider(ranked[0])

	next := make([]game.Controller, 0, r.population)
	next = append(next, r.champ.best().Clone())
	for len(next) < r.population {
		next = append(next, NewFFNN(r.rng))
	}
	return next, nil
}

// Test drives agent with the champion.
func (r *RandomSearch) Test(agent game.Agent) game.Controls {
	return r.champ.control(agent.Inputs)
}

// Best returns the champion, or nil.
func (r *RandomSearch) Best() game.Controller {
	return r.champ.controller()
}
