package game

import (
	"context"
	"sync"
)

// Gate is a pause gate for a loop running on another goroutine. The loop calls
// Wait at every iteration boundary; Pause makes the next Wait block until
// Resume or Stop.
type Gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool
	waiting int
}

// NewGate creates an open gate.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Pause closes the gate.
func (g *Gate) Pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

// Resume opens the gate and releases the blocked loop.
func (g *Gate) Resume() {
	g.mu.Lock()
	g.paused = false
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Toggle flips the gate and returns whether it is now paused.
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	g.paused = !g.paused
	paused := g.paused
	if !paused {
		g.cond.Broadcast()
	}
	g.mu.Unlock()
	return paused
}

// Paused reports whether the gate is closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Waiting reports whether a loop is currently blocked in Wait.
func (g *Gate) Waiting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting > 0
}

// Stop permanently releases the gate; every Wait returns false from now on.
func (g *Gate) Stop() {
	g.mu.Lock()
	g.stopped = true
	g.cond.Broadcast()
	g.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (g *Gate) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

// Wait blocks while the gate is paused. It returns false once the gate is
// stopped or ctx is done, true when the loop may run its next iteration.
func (g *Gate) Wait(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused && !g.stopped {
		release := context.AfterFunc(ctx, func() {
			g.mu.Lock()
			g.cond.Broadcast()
			g.mu.Unlock()
		})
		defer release()
	}

	for g.paused && !g.stopped && ctx.Err() == nil {
		g.waiting++
		g.cond.Wait()
		g.waiting--
	}
	return !g.stopped && ctx.Err() == nil
}
