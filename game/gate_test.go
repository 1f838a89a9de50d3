package game

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGateOpenDoesNotBlock(t *testing.T) {
	g := NewGate()
	if !g.Wait(context.Background()) {
		t.Fatal("open gate should let the loop run")
	}
}

func TestGatePauseResume(t *testing.T) {
	g := NewGate()
	g.Pause()

	released := make(chan bool)
	go func() { released <- g.Wait(context.Background()) }()

	waitFor(t, g.Waiting)
	select {
	case <-released:
		t.Fatal("Wait returned while paused")
	case <-time.After(10 * time.Millisecond):
	}

	g.Resume()
	if ok := <-released; !ok {
		t.Error("Wait after Resume = false, want true")
	}
	if g.Waiting() {
		t.Error("Waiting still true after release")
	}
}

func TestGateToggle(t *testing.T) {
	g := NewGate()
	if !g.Toggle() || !g.Paused() {
		t.Fatal("first Toggle should pause")
	}
	if g.Toggle() || g.Paused() {
		t.Fatal("second Toggle should resume")
	}
}

func TestGateStopReleases(t *testing.T) {
	g := NewGate()
	g.Pause()

	released := make(chan bool)
	go func() { released <- g.Wait(context.Background()) }()
	waitFor(t, g.Waiting)

	g.Stop()
	if ok := <-released; ok {
		t.Error("Wait after Stop = true, want false")
	}
	if g.Wait(context.Background()) {
		t.Error("stopped gate let the loop run")
	}
	if !g.Stopped() {
		t.Error("Stopped = false")
	}
}

func TestGateContextCancel(t *testing.T) {
	g := NewGate()
	g.Pause()
	ctx, cancel := context.WithCancel(context.Background())

	released := make(chan bool)
	go func() { released <- g.Wait(ctx) }()
	waitFor(t, g.Waiting)

	cancel()
	if ok := <-released; ok {
		t.Error("Wait after cancel = true, want false")
	}
}
