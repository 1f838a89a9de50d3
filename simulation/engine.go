package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/game"
	"github.com/pthm-cable/laop/hooks"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/recording"
	"github.com/pthm-cable/laop/telemetry"
)

// Environment keys accepted in training.environment.
const (
	EnvMultiAgent  = "multi_agent"
	EnvSingleAgent = "single_agent"
)

// environments maps every registered environment to whether it can run.
var environments = map[string]bool{
	EnvMultiAgent:  true,
	EnvSingleAgent: false,
}

// ResolveEnvironment maps a configured environment key to the one that will
// run. Unknown keys fall back to multi_agent; registered but unsupported
// keys fail with ErrUnsupportedEnvironment.
func ResolveEnvironment(key string) (string, error) {
	supported, ok := environments[key]
	if !ok {
		slog.Warn("environment_substituted", "requested", key, "using", EnvMultiAgent)
		return EnvMultiAgent, nil
	}
	if !supported {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEnvironment, key)
	}
	return key, nil
}

// SessionEvent is delivered when a training session starts.
type SessionEvent struct {
	RunID     string
	Index     int
	Name      string
	Algorithm string
}

// SessionResult summarises one finished training session.
type SessionResult struct {
	Name        string
	Algorithm   string
	Generations int
	Epochs      int
	BestFitness float64
	Best        game.Controller
	Err         error
}

// Result summarises a whole Engine run.
type Result struct {
	RunID       string
	Environment string
	Sessions    []SessionResult
	Tests       []telemetry.TestResult
}

// trained pairs a session name with its learner for the test phase.
type trained struct {
	name    string
	learner LearningAlgorithm
}

// Engine runs every configured training session in order, each with its own
// Orchestrator, then tests the trained learners side by side. Pause blocks
// the engine at the next generation boundary and suspends the running
// physics loop.
type Engine struct {
	cfg        *config.Config
	algorithms Registry
	m          *maps.Map
	buffer     *recording.Buffer
	testBuffer *recording.Buffer
	runID      string
	env        string
	seed       int64
	gate       *game.Gate

	mu      sync.Mutex
	current *Orchestrator
	testing *game.PhysicsEngine
	index   int
	started bool
	stopped bool
	result  Result
	done    chan struct{}

	onSessionStarted     hooks.List[SessionEvent]
	onGenerationFinished hooks.List[GenerationResult]
	onTestEpisode        hooks.List[telemetry.TestResult]
	onEnd                hooks.List[Result]
}

// NewEngine validates the environment and every session's algorithm key and
// returns an idle engine. buffer receives training snapshots and may be nil.
func NewEngine(cfg *config.Config, algorithms Registry, m *maps.Map, buffer *recording.Buffer) (*Engine, error) {
	env, err := ResolveEnvironment(cfg.Training.Environment)
	if err != nil {
		return nil, err
	}
	for _, s := range cfg.Training.Sessions {
		if _, ok := algorithms[s.Algorithm]; !ok {
			return nil, fmt.Errorf("session %q: %w %q (known: %v)", s.Name, ErrUnknownAlgorithm, s.Algorithm, algorithms.Keys())
		}
	}
	if m == nil || !m.Baked() {
		return nil, fmt.Errorf("simulation engine: map is not baked")
	}

	seed := cfg.Training.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()
	return &Engine{
		cfg:        cfg,
		algorithms: algorithms,
		m:          m,
		buffer:     buffer,
		testBuffer: recording.NewBuffer(),
		runID:      runID,
		env:        env,
		seed:       seed,
		gate:       game.NewGate(),
		result:     Result{RunID: runID, Environment: env},
		done:       make(chan struct{}),
	}, nil
}

// RunID returns the unique ID of this run.
func (e *Engine) RunID() string {
	return e.runID
}

// Seed returns the seed sessions derive their randomness from.
func (e *Engine) Seed() int64 {
	return e.seed
}

// TestBuffer returns the buffer recording the current test episode.
func (e *Engine) TestBuffer() *recording.Buffer {
	return e.testBuffer
}

// OnSessionStarted registers a listener fired when a session begins.
func (e *Engine) OnSessionStarted(a hooks.Action[SessionEvent]) {
	e.onSessionStarted.Add(a)
}

// OnGenerationFinished registers a listener fired after every generation of
// every session.
func (e *Engine) OnGenerationFinished(a hooks.Action[GenerationResult]) {
	e.onGenerationFinished.Add(a)
}

// OnTestEpisode registers a listener fired once per session per test episode.
func (e *Engine) OnTestEpisode(a hooks.Action[telemetry.TestResult]) {
	e.onTestEpisode.Add(a)
}

// OnEnd registers a listener fired once when the run ends.
func (e *Engine) OnEnd(a hooks.Action[Result]) {
	e.onEnd.Add(a)
}

// Current returns the orchestrator of the running session, or nil.
func (e *Engine) Current() *Orchestrator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SessionIndex returns the index of the running or last session.
func (e *Engine) SessionIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Start runs the engine on its own goroutine.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	go e.run(ctx)
	return nil
}

// Run runs the engine on the calling goroutine and returns its result.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if err := e.begin(); err != nil {
		return Result{}, err
	}
	e.run(ctx)
	return e.Wait(), nil
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("simulation engine: %w", game.ErrAlreadyStarted)
	}
	e.started = true
	return nil
}

// Wait blocks until the run has ended and returns its result.
func (e *Engine) Wait() Result {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Done is closed when the run has ended.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Pause blocks the engine at the next generation boundary and suspends the
// physics loop that is running now.
func (e *Engine) Pause() {
	e.gate.Pause()
	e.forEachLoop(func(o *Orchestrator, pe *game.PhysicsEngine) {
		if o != nil {
			o.Pause()
		}
		if pe != nil {
			pe.Pause()
		}
	})
}

// Resume releases a paused engine.
func (e *Engine) Resume() {
	e.forEachLoop(func(o *Orchestrator, pe *game.PhysicsEngine) {
		if o != nil {
			o.Resume()
		}
		if pe != nil {
			pe.Resume()
		}
	})
	e.gate.Resume()
}

// Paused reports whether a pause is requested.
func (e *Engine) Paused() bool {
	return e.gate.Paused()
}

func (e *Engine) forEachLoop(fn func(*Orchestrator, *game.PhysicsEngine)) {
	e.mu.Lock()
	o, pe := e.current, e.testing
	e.mu.Unlock()
	fn(o, pe)
}

// NextSession ends the running session after its current generation and
// moves on to the next one.
func (e *Engine) NextSession() {
	if o := e.Current(); o != nil {
		o.Stop()
	}
}

// Stop ends the run after the current generation. Remaining sessions and
// the test phase are skipped; end listeners still fire.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	o, pe := e.current, e.testing
	e.mu.Unlock()
	if o != nil {
		o.Stop()
		if live := o.Engine(); live != nil {
			live.Stop()
		}
	}
	if pe != nil {
		pe.Stop()
	}
	e.gate.Stop()
}

func (e *Engine) stopping(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped || ctx.Err() != nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	slog.Info("run_started",
		"run_id", e.runID,
		"environment", e.env,
		"sessions", len(e.cfg.Training.Sessions),
		"seed", e.seed,
	)

	var done []trained
	for i, s := range e.cfg.Training.Sessions {
		if e.stopping(ctx) || !e.gate.Wait(ctx) {
			break
		}
		sr, learner := e.runSession(ctx, i, s)
		e.mu.Lock()
		e.result.Sessions = append(e.result.Sessions, sr)
		e.mu.Unlock()
		if sr.Err == nil && learner != nil {
			done = append(done, trained{name: s.Name, learner: learner})
		}
	}

	if !e.stopping(ctx) {
		tests := e.test(ctx, done)
		e.mu.Lock()
		e.result.Tests = tests
		e.mu.Unlock()
	}

	e.mu.Lock()
	res := e.result
	e.mu.Unlock()
	slog.Info("run_finished", "run_id", e.runID, "sessions", len(res.Sessions), "tests", len(res.Tests))
	e.onEnd.Fire(res)
}

// runSession trains one session to completion. A failing session is
// reported in its result and does not stop the run.
func (e *Engine) runSession(ctx context.Context, index int, s config.SessionConfig) (SessionResult, LearningAlgorithm) {
	sr := SessionResult{Name: s.Name, Algorithm: s.Algorithm}

	learner, err := e.algorithms.New(s.Algorithm, rand.New(rand.NewSource(e.seed+int64(index))))
	if err != nil {
		slog.Error("session_failed", "session", s.Name, "error", err)
		sr.Err = err
		return sr, nil
	}

	o := NewOrchestrator(OrchestratorConfigFromConfig(e.cfg, s.Name), e.m, e.buffer, learner)
	o.SetGate(e.gate)
	o.OnGenerationFinished(func(r GenerationResult) {
		if r.Stats.FitnessMax > sr.BestFitness {
			sr.BestFitness = r.Stats.FitnessMax
		}
		e.onGenerationFinished.Fire(r)
	})
	o.OnEnd(func(ev EndEvent) {
		sr.Generations, sr.Epochs = ev.Generations, ev.Epochs
	})

	e.mu.Lock()
	e.current = o
	e.index = index
	paused := e.gate.Paused()
	e.mu.Unlock()
	if paused {
		o.Pause()
	}

	slog.Info("session_started", "run_id", e.runID, "session", s.Name, "algorithm", s.Algorithm, "index", index)
	e.onSessionStarted.Fire(SessionEvent{RunID: e.runID, Index: index, Name: s.Name, Algorithm: s.Algorithm})

	if err := o.Run(ctx); err != nil {
		sr.Err = err
	}

	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()

	sr.Best = learner.Best()
	return sr, learner
}

// test runs the configured number of episodes with one car per trained
// learner, each driven by the learner's Test.
func (e *Engine) test(ctx context.Context, learners []trained) []telemetry.TestResult {
	if len(learners) == 0 || e.cfg.Test.Episodes == 0 {
		return nil
	}
	params := game.CarParamsFromConfig(e.cfg)

	var results []telemetry.TestResult
	for ep := 0; ep < e.cfg.Test.Episodes; ep++ {
		if e.stopping(ctx) || !e.gate.Wait(ctx) {
			break
		}
		e.testBuffer.Clear()

		pe := game.NewPhysicsEngine(e.testBuffer, e.m, params)
		pe.SetFinishingCondition(game.AllCarsDead)
		pe.SetTimeLimit(e.cfg.Physics.TimeLimit)
		pe.SetRealTime(e.cfg.Physics.RealTime)
		cars := make([]*game.Car, len(learners))
		for i, t := range learners {
			cars[i] = pe.SpawnCar(nil)
			cars[i].SetPolicy(t.learner.Test)
		}

		e.mu.Lock()
		e.testing = pe
		e.mu.Unlock()
		if e.gate.Paused() {
			pe.Pause()
		}
		err := pe.Run(ctx)
		e.mu.Lock()
		e.testing = nil
		e.mu.Unlock()
		if err != nil {
			slog.Error("test_episode_failed", "episode", ep, "error", err)
			break
		}

		for i, car := range cars {
			r := telemetry.TestResult{
				Episode:    ep,
				Session:    learners[i].name,
				Reward:     car.Fitness(),
				Iterations: pe.Iteration(),
				Dead:       car.Dead(),
			}
			r.LogResult()
			e.onTestEpisode.Fire(r)
			results = append(results, r)
		}
	}
	return results
}
