package simulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/game"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/recording"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

// stubLearner hands out constant-throttle controllers and counts calls.
type stubLearner struct {
	newCalls   atomic.Int32
	learnCalls atomic.Int32
	initCalls  atomic.Int32
	learnErr   error
	lastSizes  []int
	mu         sync.Mutex
}

func (s *stubLearner) NewController() game.Controller {
	s.newCalls.Add(1)
	return game.Constant(game.Controls{Acceleration: 1})
}

func (s *stubLearner) Init(cars []*game.Car) {
	s.initCalls.Add(1)
	s.mu.Lock()
	s.lastSizes = append(s.lastSizes, len(cars))
	s.mu.Unlock()
}

func (s *stubLearner) Learn(pop []game.Agent) ([]game.Controller, error) {
	s.learnCalls.Add(1)
	if s.learnErr != nil {
		return nil, s.learnErr
	}
	next := make([]game.Controller, len(pop))
	for i, a := range pop {
		next[i] = a.Controller
	}
	return next, nil
}

func (s *stubLearner) Test(game.Agent) game.Controls {
	return game.Controls{Acceleration: 1}
}

func (s *stubLearner) Best() game.Controller { return nil }

func testOrchestratorConfig(t *testing.T, generations, epochs int) OrchestratorConfig {
	t.Helper()
	cfg := OrchestratorConfigFromConfig(config.Default(), "test")
	cfg.PopulationSize = 3
	cfg.Generations = generations
	cfg.Epochs = epochs
	cfg.TimeLimit = 5
	cfg.RealTime = false
	cfg.AutoRun = true
	return cfg
}

func emptyMap(t *testing.T) *maps.Map {
	t.Helper()
	m, err := maps.Build("empty", 1000, 600)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestGenerationAndEpochCounting(t *testing.T) {
	tests := []struct {
		name        string
		generations int
		epochs      int
	}{
		{"single", 0, 0},
		{"two by two", 2, 1},
		{"three epochs", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			learner := &stubLearner{}
			buffer := recording.NewBuffer()
			o := NewOrchestrator(testOrchestratorConfig(t, tt.generations, tt.epochs), emptyMap(t), buffer, learner)

			var gens []GenerationResult
			var sims, ends int
			var end EndEvent
			o.OnGenerationFinished(func(r GenerationResult) { gens = append(gens, r) })
			o.OnSimulationFinished(func(*Orchestrator) { sims++ })
			o.OnEnd(func(ev EndEvent) { ends++; end = ev })

			if err := o.Run(context.Background()); err != nil {
				t.Fatal(err)
			}

			perEpoch := tt.generations + 1
			epochs := tt.epochs + 1
			if len(gens) != perEpoch*epochs {
				t.Errorf("generation notifications = %d, want %d", len(gens), perEpoch*epochs)
			}
			if sims != epochs {
				t.Errorf("epoch notifications = %d, want %d", sims, epochs)
			}
			if ends != 1 || end.Err != nil || end.Interrupted {
				t.Errorf("end = %+v (fired %d)", end, ends)
			}
			if end.Generations != perEpoch*epochs || end.Epochs != epochs {
				t.Errorf("end counts = %d gens, %d epochs", end.Generations, end.Epochs)
			}

			// Fresh controllers at each epoch start, learned ones otherwise.
			if got := int(learner.newCalls.Load()); got != 3*epochs {
				t.Errorf("NewController calls = %d, want %d", got, 3*epochs)
			}
			if got := int(learner.learnCalls.Load()); got != tt.generations*epochs {
				t.Errorf("Learn calls = %d, want %d", got, tt.generations*epochs)
			}
			if got := int(learner.initCalls.Load()); got != len(gens) {
				t.Errorf("Init calls = %d, want %d", got, len(gens))
			}

			for i, r := range gens {
				if r.Generation != i%perEpoch || r.Epoch != i/perEpoch {
					t.Errorf("result %d: epoch %d generation %d", i, r.Epoch, r.Generation)
				}
				if len(r.Population) != 3 || r.Stats.Population != 3 {
					t.Errorf("result %d population = %d", i, len(r.Population))
				}
			}

			// The buffer is cleared per generation, so it holds only the last one.
			if buffer.Size() != gens[len(gens)-1].Iterations {
				t.Errorf("buffer size %d, last generation ran %d steps", buffer.Size(), gens[len(gens)-1].Iterations)
			}
			if o.Generation() != 0 || o.Epoch() != epochs {
				t.Errorf("counters after run: generation %d epoch %d", o.Generation(), o.Epoch())
			}
		})
	}
}

func TestLearnErrorEndsRun(t *testing.T) {
	boom := errors.New("boom")
	learner := &stubLearner{learnErr: boom}
	o := NewOrchestrator(testOrchestratorConfig(t, 5, 0), emptyMap(t), nil, learner)

	var gens int
	var end EndEvent
	ends := 0
	o.OnGenerationFinished(func(GenerationResult) { gens++ })
	o.OnEnd(func(ev EndEvent) { ends++; end = ev })

	err := o.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if gens != 1 {
		t.Errorf("generations before failure = %d, want 1", gens)
	}
	if ends != 1 || !errors.Is(end.Err, boom) {
		t.Errorf("end = %+v (fired %d)", end, ends)
	}
}

func TestRunTwiceFails(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(t, 0, 0), emptyMap(t), nil, &stubLearner{})
	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := o.Run(context.Background()); !errors.Is(err, game.ErrAlreadyStarted) {
		t.Errorf("second Run err = %v", err)
	}
}

func TestAutoRunOffWaitsForTrigger(t *testing.T) {
	cfg := testOrchestratorConfig(t, 10, 0)
	cfg.AutoRun = false
	o := NewOrchestrator(cfg, emptyMap(t), nil, &stubLearner{})

	var gens atomic.Int32
	o.OnGenerationFinished(func(GenerationResult) { gens.Add(1) })

	errc := make(chan error, 1)
	go func() { errc <- o.Run(context.Background()) }()

	waitFor(t, func() bool { return gens.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if gens.Load() != 1 {
		t.Fatalf("advanced to %d generations without a trigger", gens.Load())
	}

	o.Trigger()
	waitFor(t, func() bool { return gens.Load() == 2 })

	o.Stop()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if gens.Load() != 2 {
		t.Errorf("generations = %d, want 2", gens.Load())
	}
}

func TestStopEndsAfterCurrentGeneration(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(t, 100, 0), emptyMap(t), nil, &stubLearner{})
	var gens int
	o.OnGenerationFinished(func(GenerationResult) {
		gens++
		if gens == 3 {
			o.Stop()
		}
	})
	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gens != 3 {
		t.Errorf("generations = %d, want 3", gens)
	}
}

func TestPauseCarriesIntoGeneration(t *testing.T) {
	cfg := testOrchestratorConfig(t, 0, 0)
	cfg.TimeLimit = 1 << 20
	o := NewOrchestrator(cfg, emptyMap(t), nil, &stubLearner{})
	o.Pause()

	errc := make(chan error, 1)
	go func() { errc <- o.Run(context.Background()) }()

	waitFor(t, func() bool {
		e := o.Engine()
		return e != nil && e.Suspended()
	})
	e := o.Engine()
	if e.Iteration() != 0 {
		t.Errorf("paused generation ran %d steps", e.Iteration())
	}

	if o.TogglePause() {
		t.Fatal("TogglePause after Pause should resume")
	}
	waitFor(t, func() bool { return e.Iteration() > 10 })
	e.Stop()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
}

func TestCancelWhilePausedIsBenign(t *testing.T) {
	cfg := testOrchestratorConfig(t, 0, 0)
	cfg.TimeLimit = 1 << 20
	o := NewOrchestrator(cfg, emptyMap(t), nil, &stubLearner{})
	o.Pause()

	var end EndEvent
	o.OnEnd(func(ev EndEvent) { end = ev })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- o.Run(ctx) }()
	waitFor(t, func() bool {
		e := o.Engine()
		return e != nil && e.Suspended()
	})

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("cancel reported as error: %v", err)
	}
	if !end.Interrupted {
		t.Error("end event not marked interrupted")
	}
}

func TestGateBlocksBetweenGenerations(t *testing.T) {
	o := NewOrchestrator(testOrchestratorConfig(t, 5, 0), emptyMap(t), nil, &stubLearner{})
	gate := game.NewGate()
	o.SetGate(gate)

	var gens atomic.Int32
	o.OnGenerationFinished(func(GenerationResult) {
		if gens.Add(1) == 2 {
			gate.Pause()
		}
	})

	errc := make(chan error, 1)
	go func() { errc <- o.Run(context.Background()) }()
	waitFor(t, gate.Waiting)
	if gens.Load() != 2 {
		t.Errorf("blocked after %d generations, want 2", gens.Load())
	}

	gate.Resume()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if gens.Load() != 6 {
		t.Errorf("generations = %d, want 6", gens.Load())
	}
}

func TestSummarizePicksFittest(t *testing.T) {
	a := game.Constant(game.Controls{})
	b := &game.ManualController{}
	stats, best := summarize(GenerationResult{
		Session: "s",
		Population: []game.Agent{
			{Controller: a, Fitness: 1, Dead: true, Steps: 4},
			{Controller: b, Fitness: 7, Steps: 10},
		},
		Iterations: 10,
	})
	if got, ok := best.(*game.ManualController); !ok || got != b {
		t.Errorf("best = %v", best)
	}
	if stats.Survivors != 1 || stats.FitnessMax != 7 || stats.StepsMean != 7 {
		t.Errorf("stats = %+v", stats)
	}
}
