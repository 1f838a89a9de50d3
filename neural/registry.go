package neural

import (
	"math/rand"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/simulation"
)

// Algorithm keys accepted in training.sessions[].algorithm.
const (
	AlgorithmGenetic = "genetic"
	AlgorithmRandom  = "random"
)

// Algorithms returns the learning algorithms configured from cfg.
func Algorithms(cfg *config.Config) simulation.Registry {
	return simulation.Registry{
		AlgorithmGenetic: func(rng *rand.Rand) (simulation.LearningAlgorithm, error) {
			return NewGeneticLearning(rng, GeneticParamsFromConfig(cfg))
		},
		AlgorithmRandom: func(rng *rand.Rand) (simulation.LearningAlgorithm, error) {
			return NewRandomSearch(rng, cfg.Training.PopulationSize)
		},
	}
}
