// Package hooks provides typed listener lists.
//
// Listeners run synchronously on the goroutine that fires them, in
// registration order. Lists are safe for concurrent Add and Fire.
package hooks

import "sync"

// Action is a callback receiving a value of type T.
type Action[T any] func(T)

// List is an ordered list of actions. The zero value is ready to use.
type List[T any] struct {
	mu      sync.Mutex
	actions []Action[T]
}

// Add appends a to the list. Nil actions are ignored.
func (l *List[T]) Add(a Action[T]) {
	if a == nil {
		return
	}
	l.mu.Lock()
	l.actions = append(l.actions, a)
	l.mu.Unlock()
}

// Fire calls every action with v. Actions added during Fire run next time.
func (l *List[T]) Fire(v T) {
	l.mu.Lock()
	actions := append([]Action[T](nil), l.actions...)
	l.mu.Unlock()
	for _, a := range actions {
		a(v)
	}
}

// FireOnce calls every action with v and clears the list, so each action
// runs at most once.
func (l *List[T]) FireOnce(v T) {
	l.mu.Lock()
	actions := l.actions
	l.actions = nil
	l.mu.Unlock()
	for _, a := range actions {
		a(v)
	}
}

// Len returns the number of registered actions.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}

// Clear removes every action.
func (l *List[T]) Clear() {
	l.mu.Lock()
	l.actions = nil
	l.mu.Unlock()
}
