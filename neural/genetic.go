package neural

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/game"
)

// ErrNoNetworks is returned by Learn when no agent in the population is
// driven by an *FFNN.
var ErrNoNetworks = errors.New("population has no neural controllers")

// GeneticParams holds the genetic algorithm settings.
type GeneticParams struct {
	Population     int
	Elite          int
	TournamentSize int
	CrossoverRate  float64
	MutationRate   float64
	MutationSigma  float64
	BigRate        float64
	BigSigma       float64
}

// GeneticParamsFromConfig reads GeneticParams from the loaded config.
func GeneticParamsFromConfig(cfg *config.Config) GeneticParams {
	g := cfg.Genetic
	return GeneticParams{
		Population:     cfg.Training.PopulationSize,
		Elite:          cfg.Derived.EliteCount,
		TournamentSize: g.TournamentSize,
		CrossoverRate:  g.CrossoverRate,
		MutationRate:   g.MutationRate,
		MutationSigma:  g.MutationSigma,
		BigRate:        g.BigRate,
		BigSigma:       g.BigSigma,
	}
}

func (p GeneticParams) validate() error {
	if p.Population <= 0 {
		return fmt.Errorf("population must be > 0, got %d", p.Population)
	}
	if p.Elite < 0 || p.Elite > p.Population {
		return fmt.Errorf("elite count %d out of range [0, %d]", p.Elite, p.Population)
	}
	return nil
}

// scored pairs a network with the fitness it reached.
type scored struct {
	nn      *FFNN
	fitness float64
}

// rank collects the networks in population sorted by descending fitness.
// Agents with other controller types are skipped.
func rank(population []game.Agent) []scored {
	ranked := make([]scored, 0, len(population))
	for _, a := range population {
		if nn, ok := a.Controller.(*FFNN); ok && nn != nil {
			ranked = append(ranked, scored{nn: nn, fitness: a.Fitness})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fitness > ranked[j].fitness
	})
	return ranked
}

// champion tracks the best network seen across generations.
type champion struct {
	mu      sync.RWMutex
	nn      *FFNN
	fitness float64
}

func (c *champion) consider(s scored) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nn != nil && s.fitness <= c.fitness {
		return false
	}
	c.nn = s.nn.Clone()
	c.fitness = s.fitness
	return true
}

func (c *champion) best() *FFNN {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nn
}

func (c *champion) control(inputs []float64) game.Controls {
	nn := c.best()
	if nn == nil {
		return game.Controls{}
	}
	return nn.Control(inputs)
}

func (c *champion) controller() game.Controller {
	if nn := c.best(); nn != nil {
		return nn
	}
	return nil
}

// GeneticLearning evolves FFNN controllers with elitism, tournament
// selection, uniform crossover and sparse mutation.
type GeneticLearning struct {
	params GeneticParams
	rng    *rand.Rand

	champ      champion
	generation int
	spawned    int
}

// NewGeneticLearning creates a genetic learner drawing randomness from rng.
func NewGeneticLearning(rng *rand.Rand, params GeneticParams) (*GeneticLearning, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("genetic learning: %w", err)
	}
	if params.TournamentSize < 1 {
		params.TournamentSize = 1
	}
	return &GeneticLearning{params: params, rng: rng}, nil
}

// NewController returns a random network.
func (g *GeneticLearning) NewController() game.Controller {
	return NewFFNN(g.rng)
}

// Init records the number of cars spawned for the coming generation.
func (g *GeneticLearning) Init(cars []*game.Car) {
	g.spawned = len(cars)
}

// Spawned returns the car count passed to the last Init.
func (g *GeneticLearning) Spawned() int {
	return g.spawned
}

// Learn breeds the next generation. The top Elite networks carry over
// unchanged; the rest are tournament-selected, crossed over and mutated.
func (g *GeneticLearning) Learn(population []game.Agent) ([]game.Controller, error) {
	ranked := rank(population)
	if len(ranked) == 0 {
		return nil, ErrNoNetworks
	}
	g.generation++
	if g.champ.consider(ranked[0]) {
		slog.Debug("genetic_new_best", "generation", g.generation, "fitness", ranked[0].fitness)
	}

	next := make([]game.Controller, 0, g.params.Population)
	for i := 0; i < g.params.Elite && i < len(ranked); i++ {
		next = append(next, ranked[i].nn.Clone())
	}

	var deltaSum float64
	var bred int
	for len(next) < g.params.Population {
		a := g.tournament(ranked)
		var child *FFNN
		if g.rng.Float64() < g.params.CrossoverRate {
			child = a.Crossover(g.rng, g.tournament(ranked), 0.5)
		} else {
			child = a.Clone()
		}
		deltaSum += child.MutateSparse(g.rng, g.params.MutationRate, g.params.MutationSigma, g.params.BigRate, g.params.BigSigma)
		bred++
		next = append(next, child)
	}

	if bred > 0 {
		slog.Debug("genetic_bred", "generation", g.generation, "offspring", bred, "avg_mutation", deltaSum/float64(bred))
	}
	return next, nil
}

// tournament picks TournamentSize random entries and returns the fittest.
func (g *GeneticLearning) tournament(ranked []scored) *FFNN {
	best := len(ranked)
	for i := 0; i < g.params.TournamentSize; i++ {
		if idx := g.rng.Intn(len(ranked)); idx < best {
			best = idx // ranked is sorted, so a lower index is fitter
		}
	}
	return ranked[best].nn
}

// Test drives agent with the best network found so far.
func (g *GeneticLearning) Test(agent game.Agent) game.Controls {
	return g.champ.control(agent.Inputs)
}

// Best returns the best network found so far, or nil.
func (g *GeneticLearning) Best() game.Controller {
	return g.champ.controller()
}

// BestFitness returns the fitness of the best network found so far.
func (g *GeneticLearning) BestFitness() float64 {
	g.champ.mu.RLock()
	defer g.champ.mu.RUnlock()
	return g.champ.fitness
}
