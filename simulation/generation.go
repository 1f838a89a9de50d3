package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/game"
	"github.com/pthm-cable/laop/hooks"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/recording"
	"github.com/pthm-cable/laop/telemetry"
)

// ErrEmptyPopulation is returned when a learner produces no controllers.
var ErrEmptyPopulation = errors.New("learner returned an empty population")

// OrchestratorConfig holds the scalars a training session runs with.
type OrchestratorConfig struct {
	Session        string
	PopulationSize int
	Generations    int // generation limit per epoch
	Epochs         int // epoch limit
	TimeLimit      int // physics iterations per generation
	RealTime       bool
	AutoRun        bool
	Car            game.CarParams

	// Finishing ends each generation early. Defaults to game.AllCarsDead.
	Finishing game.Condition
}

// OrchestratorConfigFromConfig reads an OrchestratorConfig for session from cfg.
func OrchestratorConfigFromConfig(cfg *config.Config, session string) OrchestratorConfig {
	return OrchestratorConfig{
		Session:        session,
		PopulationSize: cfg.Training.PopulationSize,
		Generations:    cfg.Training.Generations,
		Epochs:         cfg.Training.Epochs,
		TimeLimit:      cfg.Physics.TimeLimit,
		RealTime:       cfg.Physics.RealTime,
		AutoRun:        cfg.Training.AutoRun,
		Car:            game.CarParamsFromConfig(cfg),
	}
}

// GenerationResult describes one evaluated generation.
type GenerationResult struct {
	Session    string
	Epoch      int
	Generation int // generation index within the epoch, before the increment
	Population []game.Agent
	Iterations int
	Duration   time.Duration
	Stats      telemetry.GenerationStats
	Perf       telemetry.PerfStats
	Best       game.Controller // fittest controller of this generation
}

// EndEvent is delivered to end listeners once per Run.
type EndEvent struct {
	Session     string
	Generations int // generations evaluated in total
	Epochs      int // epochs completed
	Interrupted bool
	Err         error
}

// Orchestrator runs generation after generation of a population against a
// map, feeding each evaluated population to a LearningAlgorithm. Within an
// epoch the generation counter runs 0..Generations; after it exceeds the
// limit it resets and the epoch counter advances, and the run ends once the
// epoch counter exceeds Epochs.
type Orchestrator struct {
	cfg     OrchestratorConfig
	m       *maps.Map
	buffer  *recording.Buffer
	learner LearningAlgorithm
	gate    *game.Gate // optional, waited on at every generation boundary
	perf    *telemetry.PerfCollector

	mu          sync.Mutex
	generation  int
	epoch       int
	total       int
	autoRun     bool
	paused      bool
	stopped     bool
	engine      *game.PhysicsEngine
	controllers []game.Controller
	population  []game.Agent
	last        *GenerationResult
	running     bool

	next chan struct{}

	onGenerationFinished hooks.List[GenerationResult]
	onSimulationFinished hooks.List[*Orchestrator]
	onEnd                hooks.List[EndEvent]
}

// NewOrchestrator creates an orchestrator. buffer may be nil.
func NewOrchestrator(cfg OrchestratorConfig, m *maps.Map, buffer *recording.Buffer, learner LearningAlgorithm) *Orchestrator {
	if cfg.Finishing == nil {
		cfg.Finishing = game.AllCarsDead
	}
	return &Orchestrator{
		cfg:     cfg,
		m:       m,
		buffer:  buffer,
		learner: learner,
		autoRun: cfg.AutoRun,
		perf:    telemetry.NewPerfCollector(256),
		next:    make(chan struct{}, 1),
	}
}

// SetGate makes the orchestrator wait on g before every generation.
func (o *Orchestrator) SetGate(g *game.Gate) {
	o.gate = g
}

// Learner returns the learning algorithm.
func (o *Orchestrator) Learner() LearningAlgorithm {
	return o.learner
}

// OnGenerationFinished registers a listener fired after every generation,
// once the generation counter has been incremented.
func (o *Orchestrator) OnGenerationFinished(a hooks.Action[GenerationResult]) {
	o.onGenerationFinished.Add(a)
}

// OnSimulationFinished registers a listener fired when an epoch completes.
func (o *Orchestrator) OnSimulationFinished(a hooks.Action[*Orchestrator]) {
	o.onSimulationFinished.Add(a)
}

// OnEnd registers a listener fired once when Run returns, including on error.
func (o *Orchestrator) OnEnd(a hooks.Action[EndEvent]) {
	o.onEnd.Add(a)
}

// Generation returns the generation counter within the current epoch.
func (o *Orchestrator) Generation() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// Epoch returns the epoch counter.
func (o *Orchestrator) Epoch() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}

// LastResult returns the most recent generation result.
func (o *Orchestrator) LastResult() (GenerationResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return GenerationResult{}, false
	}
	return *o.last, true
}

// Engine returns the physics engine of the running generation, or nil.
func (o *Orchestrator) Engine() *game.PhysicsEngine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.engine
}

// SetAutoRun controls whether the next generation starts as soon as one
// finishes. With auto-run off, Trigger starts each generation.
func (o *Orchestrator) SetAutoRun(autoRun bool) {
	o.mu.Lock()
	o.autoRun = autoRun
	o.mu.Unlock()
}

// AutoRun reports whether auto-run is on.
func (o *Orchestrator) AutoRun() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoRun
}

// Trigger schedules the next generation when auto-run is off.
func (o *Orchestrator) Trigger() {
	o.schedule()
}

func (o *Orchestrator) schedule() {
	select {
	case o.next <- struct{}{}:
	default:
	}
}

// Pause suspends the running physics loop. A pause requested between
// generations applies to the next one.
func (o *Orchestrator) Pause() {
	o.setPaused(true)
}

// Resume continues a paused physics loop.
func (o *Orchestrator) Resume() {
	o.setPaused(false)
}

// TogglePause flips pause and returns whether the orchestrator is now paused.
func (o *Orchestrator) TogglePause() bool {
	o.mu.Lock()
	p := !o.paused
	o.mu.Unlock()
	o.setPaused(p)
	return p
}

// Paused reports whether a pause is requested.
func (o *Orchestrator) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *Orchestrator) setPaused(p bool) {
	o.mu.Lock()
	o.paused = p
	e := o.engine
	o.mu.Unlock()
	if e == nil {
		return
	}
	if p {
		e.Pause()
	} else {
		e.Resume()
	}
}

// Stop ends the run once the current generation has finished.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
	o.schedule()
}

func (o *Orchestrator) stopRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// Run evaluates generations until the epoch limit is exceeded, Stop is
// called, ctx is cancelled, or a generation fails. End listeners fire once
// in every case. Cancellation is not reported as an error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator %q: %w", o.cfg.Session, game.ErrAlreadyStarted)
	}
	o.running = true
	o.mu.Unlock()

	ev := EndEvent{Session: o.cfg.Session}
	defer func() {
		o.mu.Lock()
		ev.Generations, ev.Epochs = o.total, o.epoch
		o.mu.Unlock()
		o.onEnd.Fire(ev)
	}()

	for {
		if o.gate != nil && !o.gate.Wait(ctx) {
			ev.Interrupted = ctx.Err() != nil
			return nil
		}
		if ctx.Err() != nil {
			ev.Interrupted = true
			slog.Info("training_interrupted", "session", o.cfg.Session, "reason", ctx.Err())
			return nil
		}

		res, err := o.runGeneration(ctx)
		if err != nil {
			slog.Error("generation_aborted",
				"session", o.cfg.Session,
				"epoch", o.Epoch(),
				"generation", o.Generation(),
				"error", err,
			)
			ev.Err = err
			return err
		}
		if ctx.Err() != nil {
			// The physics loop was interrupted mid-generation; its result is partial.
			ev.Interrupted = true
			slog.Info("training_interrupted", "session", o.cfg.Session, "reason", ctx.Err())
			return nil
		}

		if o.advance(res) || o.stopRequested() {
			return nil
		}

		select {
		case <-o.next:
		case <-ctx.Done():
			ev.Interrupted = true
			return nil
		}
		if o.stopRequested() {
			return nil
		}
	}
}

// runGeneration configures the population, runs one physics loop to
// completion and collects the result.
func (o *Orchestrator) runGeneration(ctx context.Context) (GenerationResult, error) {
	// Drop triggers left over from before this generation started.
	select {
	case <-o.next:
	default:
	}

	if o.buffer != nil {
		o.buffer.Clear()
	}

	controllers, err := o.configurePopulation()
	if err != nil {
		return GenerationResult{}, err
	}

	engine := game.NewPhysicsEngine(o.buffer, o.m, o.cfg.Car)
	engine.SetFinishingCondition(o.cfg.Finishing)
	engine.SetTimeLimit(o.cfg.TimeLimit)
	engine.SetRealTime(o.cfg.RealTime)
	o.perf.Reset()
	engine.SetPerfCollector(o.perf)

	cars := make([]*game.Car, len(controllers))
	for i, c := range controllers {
		cars[i] = engine.SpawnCar(c)
	}
	o.learner.Init(cars)

	engine.OnFinishOnce(func(pe *game.PhysicsEngine) {
		pop := pe.Population()
		o.mu.Lock()
		o.population = pop
		auto := o.autoRun
		o.mu.Unlock()
		if auto {
			o.schedule()
		}
	})

	o.mu.Lock()
	o.engine = engine
	o.controllers = controllers
	paused := o.paused
	epoch, gen := o.epoch, o.generation
	o.mu.Unlock()
	if paused {
		engine.Pause()
	}

	started := time.Now()
	if err := engine.Start(ctx); err != nil {
		return GenerationResult{}, err
	}
	engine.Wait()
	elapsed := time.Since(started)

	o.mu.Lock()
	o.engine = nil
	pop := o.population
	o.mu.Unlock()

	res := GenerationResult{
		Session:    o.cfg.Session,
		Epoch:      epoch,
		Generation: gen,
		Population: pop,
		Iterations: engine.Iteration(),
		Duration:   elapsed,
		Perf:       o.perf.Stats(),
	}
	res.Stats, res.Best = summarize(res)
	return res, nil
}

// configurePopulation returns the controllers for the coming generation:
// fresh ones at the start of an epoch, learned ones otherwise.
func (o *Orchestrator) configurePopulation() ([]game.Controller, error) {
	o.mu.Lock()
	gen := o.generation
	prev := o.population
	o.mu.Unlock()

	if gen == 0 {
		controllers := make([]game.Controller, o.cfg.PopulationSize)
		for i := range controllers {
			controllers[i] = o.learner.NewController()
		}
		return controllers, nil
	}

	controllers, err := o.learner.Learn(prev)
	if err != nil {
		return nil, fmt.Errorf("learning generation %d: %w", gen, err)
	}
	if len(controllers) == 0 {
		return nil, ErrEmptyPopulation
	}
	return controllers, nil
}

// advance applies the generation and epoch bookkeeping and fires the
// listeners. It returns true when the epoch limit has been exceeded.
func (o *Orchestrator) advance(res GenerationResult) bool {
	o.mu.Lock()
	o.generation++
	o.total++
	o.last = &res
	o.mu.Unlock()

	res.Stats.LogStats()
	o.onGenerationFinished.Fire(res)

	o.mu.Lock()
	if o.generation <= o.cfg.Generations {
		o.mu.Unlock()
		return false
	}
	o.generation = 0
	o.epoch++
	o.population = nil
	epoch := o.epoch
	o.mu.Unlock()

	slog.Info("epoch_finished", "session", o.cfg.Session, "epoch", epoch-1)
	o.onSimulationFinished.Fire(o)

	return epoch > o.cfg.Epochs
}

// summarize computes the generation statistics and picks its fittest controller.
func summarize(res GenerationResult) (telemetry.GenerationStats, game.Controller) {
	s := telemetry.GenerationStats{
		Session:    res.Session,
		Epoch:      res.Epoch,
		Generation: res.Generation,
		Population: len(res.Population),
		Iterations: res.Iterations,
	}
	s.SetWallTime(res.Duration)

	fitness := make([]float64, len(res.Population))
	steps := make([]float64, len(res.Population))
	var best game.Controller
	bestFitness := 0.0
	for i, a := range res.Population {
		fitness[i] = a.Fitness
		steps[i] = float64(a.Steps)
		if !a.Dead {
			s.Survivors++
		}
		if best == nil || a.Fitness > bestFitness {
			best, bestFitness = a.Controller, a.Fitness
		}
	}
	s.ComputeFitnessStats(fitness, steps)
	return s, best
}
