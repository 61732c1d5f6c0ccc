// Package board implements the workspace state synchronization and
// optimistic mutation engine: the entity cache with its derived board
// views, the preference synchronizer, the proposal importer and the
// async request lifecycle tracker.
package board

import "sync"

// signal is a revision counter with an observer list. Derived values
// record the revisions of their inputs and recompute only when one of
// them has moved; observers run synchronously on every bump.
type signal struct {
	mu        sync.Mutex
	rev       uint64
	observers []func()
}

func (s *signal) Rev() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// Bump advances the revision and notifies observers outside the lock.
func (s *signal) Bump() {
	s.mu.Lock()
	s.rev++
	obs := s.observers
	s.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

func (s *signal) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// derived memoizes a computed value keyed by the revisions of its
// declared inputs.
type derived[T any] struct {
	mu      sync.Mutex
	inputs  []*signal
	seen    []uint64
	valid   bool
	value   T
	compute func() T
}

func newDerived[T any](compute func() T, inputs ...*signal) *derived[T] {
	return &derived[T]{
		inputs:  inputs,
		seen:    make([]uint64, len(inputs)),
		compute: compute,
	}
}

// Get returns the memoized value, recomputing when any input revision
// has changed since the last computation.
func (d *derived[T]) Get() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	stale := !d.valid
	for i, in := range d.inputs {
		if rev := in.Rev(); rev != d.seen[i] {
			d.seen[i] = rev
			stale = true
		}
	}
	if stale {
		d.value = d.compute()
		d.valid = true
	}
	return d.value
}
