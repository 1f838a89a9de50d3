package neural

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/game"
	"github.com/pthm-cable/laop/simulation"
)

func population(rng *rand.Rand, n int) ([]game.Agent, []*FFNN) {
	agents := make([]game.Agent, n)
	nets := make([]*FFNN, n)
	for i := range agents {
		nets[i] = NewFFNN(rng)
		agents[i] = game.Agent{ID: i, Controller: nets[i], Fitness: float64(i)}
	}
	return agents, nets
}

func testGeneticParams() GeneticParams {
	return GeneticParams{
		Population:     20,
		Elite:          2,
		TournamentSize: 3,
		CrossoverRate:  0.5,
		MutationRate:   0.2,
		MutationSigma:  0.1,
		BigRate:        0.01,
		BigSigma:       0.4,
	}
}

func TestGeneticLearnKeepsElites(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g, err := NewGeneticLearning(rng, testGeneticParams())
	if err != nil {
		t.Fatal(err)
	}
	agents, nets := population(rng, 10)

	next, err := g.Learn(agents)
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 20 {
		t.Fatalf("next population = %d, want 20", len(next))
	}

	// Fitness equals index, so the last two nets are the elites.
	for i, want := range []*FFNN{nets[9], nets[8]} {
		got := next[i].(*FFNN)
		if got == want {
			t.Errorf("elite %d is not a copy", i)
		}
		if got.Distance(want) != 0 {
			t.Errorf("elite %d was modified", i)
		}
	}

	best := g.Best().(*FFNN)
	if best.Distance(nets[9]) != 0 || g.BestFitness() != 9 {
		t.Errorf("best fitness = %f", g.BestFitness())
	}
}

func TestGeneticBestIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	g, _ := NewGeneticLearning(rng, testGeneticParams())

	agents, _ := population(rng, 5)
	if _, err := g.Learn(agents); err != nil {
		t.Fatal(err)
	}
	worse, _ := population(rng, 3) // max fitness 2 < 4
	if _, err := g.Learn(worse); err != nil {
		t.Fatal(err)
	}
	if g.BestFitness() != 4 {
		t.Errorf("best fitness regressed to %f", g.BestFitness())
	}
}

func TestGeneticLearnErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g, _ := NewGeneticLearning(rng, testGeneticParams())

	_, err := g.Learn([]game.Agent{{Controller: game.Constant(game.Controls{})}})
	if !errors.Is(err, ErrNoNetworks) {
		t.Errorf("err = %v, want ErrNoNetworks", err)
	}
	if g.Best() != nil {
		t.Error("Best before any evaluation should be nil")
	}
	if c := g.Test(game.Agent{Inputs: make([]float64, NumInputs)}); c != (game.Controls{}) {
		t.Errorf("Test without a champion = %+v", c)
	}

	bad := testGeneticParams()
	bad.Elite = 50
	if _, err := NewGeneticLearning(rng, bad); err == nil {
		t.Error("elite > population accepted")
	}
}

func TestGeneticTestUsesBest(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	g, _ := NewGeneticLearning(rng, testGeneticParams())
	agents, nets := population(rng, 4)
	if _, err := g.Learn(agents); err != nil {
		t.Fatal(err)
	}

	in := []float64{1, 0.5, 0.2, 0.5, 1, 0.3}
	if got, want := g.Test(game.Agent{Inputs: in}), nets[3].Control(in); got != want {
		t.Errorf("Test = %+v, want %+v", got, want)
	}
}

func TestRandomSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	r, err := NewRandomSearch(rng, 8)
	if err != nil {
		t.Fatal(err)
	}
	agents, nets := population(rng, 5)

	next, err := r.Learn(agents)
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 8 {
		t.Fatalf("next population = %d, want 8", len(next))
	}
	if next[0].(*FFNN).Distance(nets[4]) != 0 {
		t.Error("champion not carried over first")
	}
	if next[1].(*FFNN).Distance(nets[4]) == 0 {
		t.Error("refill should be fresh networks")
	}

	if _, err := NewRandomSearch(rng, 0); err == nil {
		t.Error("zero population accepted")
	}
}

func TestAlgorithmsRegistry(t *testing.T) {
	reg := Algorithms(config.Default())
	rng := rand.New(rand.NewSource(1))

	for _, key := range []string{AlgorithmGenetic, AlgorithmRandom} {
		t.Run(key, func(t *testing.T) {
			la, err := reg.New(key, rng)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := la.NewController().(*FFNN); !ok {
				t.Errorf("%s controllers are not networks", key)
			}
		})
	}

	if _, err := reg.New("nope", rng); !errors.Is(err, simulation.ErrUnknownAlgorithm) {
		t.Errorf("err = %v, want ErrUnknownAlgorithm", err)
	}
}
