package recording

import (
	"sync"

	"github.com/pthm-cable/laop/hooks"
)

// Buffer is an append-only timeline of snapshots produced by one physics run
// and read by any number of consumers. Safe for concurrent use.
type Buffer struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
	listeners hooks.List[*Buffer]
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Add appends s and then notifies every listener in registration order.
// Listeners run on the caller's goroutine, after the lock is released.
func (b *Buffer) Add(s *Snapshot) {
	b.mu.Lock()
	b.snapshots = append(b.snapshots, s)
	b.mu.Unlock()
	b.listeners.Fire(b)
}

// OnSnapshotAdded registers a listener called after every Add.
func (b *Buffer) OnSnapshotAdded(a hooks.Action[*Buffer]) {
	b.listeners.Add(a)
}

// Cars returns a copy of the cars recorded at step t. Out-of-range steps
// return an empty slice.
func (b *Buffer) Cars(t int) []CarData {
	s, ok := b.Snapshot(t)
	if !ok {
		return []CarData{}
	}
	return copyCars(s.Cars)
}

// Snapshot returns the snapshot at step t.
func (b *Buffer) Snapshot(t int) (*Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t < 0 || t >= len(b.snapshots) {
		return nil, false
	}
	return b.snapshots[t], true
}

// Last returns the most recent snapshot.
func (b *Buffer) Last() (*Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.snapshots) == 0 {
		return nil, false
	}
	return b.snapshots[len(b.snapshots)-1], true
}

// Size returns the number of recorded snapshots.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}

// Clear drops every snapshot. Listeners stay registered.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.snapshots = nil
	b.mu.Unlock()
}

// Snapshots returns the recorded timeline. The snapshots themselves are shared.
func (b *Buffer) Snapshots() []*Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Snapshot(nil), b.snapshots...)
}
