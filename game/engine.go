// Package game runs the fixed-step physics loop that drives cars through a map.
package game

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/laop/hooks"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/recording"
	"github.com/pthm-cable/laop/systems"
	"github.com/pthm-cable/laop/telemetry"
)

// DefaultTimeLimit is the iteration limit used when none is set.
const DefaultTimeLimit = 300

// ErrAlreadyStarted is returned when a physics engine is started twice.
var ErrAlreadyStarted = errors.New("physics engine already started")

// State is the lifecycle state of a PhysicsEngine.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateFinished
)

// String returns the display name for a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// PhysicsEngine steps every car through a map at a fixed DeltaT, records a
// snapshot per step and stops when its finishing condition or time limit is
// reached. It runs on its own goroutine after Start.
type PhysicsEngine struct {
	world  *systems.BodyWorld
	m      *maps.Map
	buffer *recording.Buffer
	params CarParams
	cars   []*Car
	pool   *thinkPool
	gate   *Gate
	clock  func() time.Time
	perf   *telemetry.PerfCollector

	mu        sync.Mutex // guards configuration and state
	state     State
	timeLimit int
	realTime  bool
	finishing Condition

	iteration     atomic.Int64
	stopRequested atomic.Bool

	onFinishOnce hooks.List[*PhysicsEngine]
	onStep       hooks.List[*PhysicsEngine]

	done chan struct{}
}

// NewPhysicsEngine creates an idle engine over a baked map. buffer may be nil,
// in which case no snapshots are recorded.
func NewPhysicsEngine(buffer *recording.Buffer, m *maps.Map, params CarParams) *PhysicsEngine {
	e := &PhysicsEngine{
		world:     systems.NewBodyWorld(),
		m:         m,
		buffer:    buffer,
		params:    params,
		pool:      newThinkPool(),
		gate:      NewGate(),
		timeLimit: DefaultTimeLimit,
		clock:     time.Now,
		done:      make(chan struct{}),
	}
	return e
}

// SpawnCar adds a car at the map start driven by ctrl. Must be called before Start.
func (e *PhysicsEngine) SpawnCar(ctrl Controller) *Car {
	car := newCar(len(e.cars), e.world, e.m, &e.params, e.now, ctrl)
	e.cars = append(e.cars, car)
	return car
}

// Cars returns the spawned cars in spawn order.
func (e *PhysicsEngine) Cars() []*Car {
	return append([]*Car(nil), e.cars...)
}

// World returns the body arena.
func (e *PhysicsEngine) World() *systems.BodyWorld {
	return e.world
}

// Map returns the engine's map.
func (e *PhysicsEngine) Map() *maps.Map {
	return e.m
}

// Buffer returns the snapshot buffer, possibly nil.
func (e *PhysicsEngine) Buffer() *recording.Buffer {
	return e.buffer
}

// SetFinishingCondition sets the condition checked after every step. With a
// nil condition only the time limit ends the run.
func (e *PhysicsEngine) SetFinishingCondition(c Condition) {
	e.mu.Lock()
	e.finishing = c
	e.mu.Unlock()
}

// SetTimeLimit sets the iteration limit. The loop ends after the step in
// which the iteration counter exceeds n.
func (e *PhysicsEngine) SetTimeLimit(n int) {
	e.mu.Lock()
	e.timeLimit = n
	e.mu.Unlock()
}

// TimeLimit returns the iteration limit.
func (e *PhysicsEngine) TimeLimit() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeLimit
}

// SetRealTime selects the inter-step delay: DeltaT of wall time when true,
// a scheduler yield otherwise. May be changed while running.
func (e *PhysicsEngine) SetRealTime(realTime bool) {
	e.mu.Lock()
	e.realTime = realTime
	e.mu.Unlock()
}

// simulationEpoch is the simulated time of iteration 0.
var simulationEpoch = time.Unix(0, 0)

// SimulatedTime maps the iteration counter onto a clock advancing DeltaT per
// step. Pass it to SetClock to tie collision cooldowns to simulated time.
func (e *PhysicsEngine) SimulatedTime() time.Time {
	return simulationEpoch.Add(time.Duration(float64(e.Iteration()) * systems.DeltaT * float64(time.Second)))
}

// SetClock replaces the clock used for collision cooldowns. The default is
// time.Now, so the cooldown is measured in wall time in both timing modes.
func (e *PhysicsEngine) SetClock(clock func() time.Time) {
	e.mu.Lock()
	e.clock = clock
	e.mu.Unlock()
}

// SetPerfCollector enables per-phase step timing. Must be called before Start.
func (e *PhysicsEngine) SetPerfCollector(p *telemetry.PerfCollector) {
	e.perf = p
}

func (e *PhysicsEngine) now() time.Time {
	e.mu.Lock()
	clock := e.clock
	e.mu.Unlock()
	return clock()
}

// OnFinishOnce registers a callback run exactly once, on the loop goroutine,
// when the loop exits for any reason.
func (e *PhysicsEngine) OnFinishOnce(a hooks.Action[*PhysicsEngine]) {
	e.onFinishOnce.Add(a)
}

// OnStep registers a callback run on the loop goroutine after every step.
func (e *PhysicsEngine) OnStep(a hooks.Action[*PhysicsEngine]) {
	e.onStep.Add(a)
}

// Iteration returns the number of completed steps.
func (e *PhysicsEngine) Iteration() int {
	return int(e.iteration.Load())
}

// State returns the lifecycle state.
func (e *PhysicsEngine) State() State {
	e.mu.Lock()
	s := e.state
	e.mu.Unlock()
	if s == StateRunning && e.gate.Paused() {
		return StatePaused
	}
	return s
}

// Start runs the loop on a new goroutine. Cancelling ctx interrupts it.
func (e *PhysicsEngine) Start(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	go e.loop(ctx)
	return nil
}

// Run runs the loop on the calling goroutine until it finishes.
func (e *PhysicsEngine) Run(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	e.loop(ctx)
	return nil
}

func (e *PhysicsEngine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return ErrAlreadyStarted
	}
	e.state = StateRunning
	return nil
}

// Wait blocks until a started loop has exited and its finish callbacks ran.
func (e *PhysicsEngine) Wait() {
	<-e.done
}

// Done is closed when the loop has exited and its finish callbacks ran.
func (e *PhysicsEngine) Done() <-chan struct{} {
	return e.done
}

// Pause suspends the loop at its next iteration boundary.
func (e *PhysicsEngine) Pause() {
	e.gate.Pause()
}

// Resume continues a paused loop.
func (e *PhysicsEngine) Resume() {
	e.gate.Resume()
}

// TogglePause flips pause and returns whether the loop is now paused.
func (e *PhysicsEngine) TogglePause() bool {
	return e.gate.Toggle()
}

// Paused reports whether a pause is requested.
func (e *PhysicsEngine) Paused() bool {
	return e.gate.Paused()
}

// Suspended reports whether the loop is currently blocked on a pause.
func (e *PhysicsEngine) Suspended() bool {
	return e.gate.Waiting()
}

// Stop ends the loop after the current step. Finish callbacks still run.
func (e *PhysicsEngine) Stop() {
	e.stopRequested.Store(true)
	e.gate.Stop()
}

// Population returns the agent view of every car. Call it from a finish
// callback or after Wait.
func (e *PhysicsEngine) Population() []Agent {
	agents := make([]Agent, len(e.cars))
	for i, c := range e.cars {
		agents[i] = c.Agent()
	}
	return agents
}

// Alive returns the number of cars still alive.
func (e *PhysicsEngine) Alive() int {
	n := 0
	for _, c := range e.cars {
		if !c.Dead() {
			n++
		}
	}
	return n
}

func (e *PhysicsEngine) loop(ctx context.Context) {
	defer close(e.done)
	defer e.pool.stop()

	for {
		if e.stopRequested.Load() {
			break
		}
		if !e.gate.Wait(ctx) {
			if ctx.Err() != nil {
				slog.Info("physics_loop_interrupted", "iteration", e.Iteration(), "reason", ctx.Err())
			}
			break
		}

		e.step()

		e.mu.Lock()
		cond, limit := e.finishing, e.timeLimit
		e.mu.Unlock()
		finished := (cond != nil && cond(e)) || e.Iteration() > limit

		e.iteration.Add(1)
		e.onStep.Fire(e)
		if finished {
			break
		}
		if !e.delay(ctx) {
			slog.Info("physics_loop_interrupted", "iteration", e.Iteration(), "reason", ctx.Err())
			break
		}
	}

	e.mu.Lock()
	e.state = StateFinished
	e.mu.Unlock()
	e.onFinishOnce.FireOnce(e)
}

// step advances every live car by one DeltaT: sense and decide, apply
// forces, integrate, resolve collisions, update progress, then record.
func (e *PhysicsEngine) step() {
	if e.perf != nil {
		e.perf.StartStep()
		defer e.perf.EndStep()
	}

	e.phase(telemetry.PhaseThink)
	e.pool.think(e.cars)

	e.phase(telemetry.PhaseDrive)
	for _, c := range e.cars {
		if !c.Dead() {
			c.drive(systems.DeltaT)
		}
	}

	e.phase(telemetry.PhaseIntegrate)
	for _, c := range e.cars {
		if !c.Dead() {
			c.integrate(systems.DeltaT)
		}
	}

	e.phase(telemetry.PhaseCollide)
	for _, c := range e.cars {
		if !c.Dead() {
			e.m.Collide(c)
		}
	}

	e.phase(telemetry.PhaseProgress)
	iter := e.Iteration()
	for _, c := range e.cars {
		c.progress(iter)
	}

	if e.buffer != nil {
		e.phase(telemetry.PhaseRecord)
		cars := make([]recording.CarData, len(e.cars))
		for i, c := range e.cars {
			cars[i] = c.Data()
		}
		e.buffer.Add(recording.NewSnapshot(iter, cars))
	}
}

func (e *PhysicsEngine) phase(name string) {
	if e.perf != nil {
		e.perf.StartPhase(name)
	}
}

// delay waits between steps. It returns false if ctx was cancelled.
func (e *PhysicsEngine) delay(ctx context.Context) bool {
	e.mu.Lock()
	realTime := e.realTime
	e.mu.Unlock()

	if !realTime {
		runtime.Gosched()
		return ctx.Err() == nil
	}
	t := time.NewTimer(time.Duration(systems.DeltaT * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
