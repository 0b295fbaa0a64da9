// Package expiry provides a small generic holder for values with a
// freshness deadline. It centralizes the expiry arithmetic used by the
// device-check cache, attestation cache, and trust assessments.
package expiry

import (
	"sync"
	"time"
)

// Value holds a single value of type T together with its expiry deadline.
// An expired value is treated as absent, not as a stale result.
type Value[T any] struct {
	mu       sync.RWMutex
	value    T
	deadline time.Time
	now      func() time.Time
}

// New returns an empty Value. Get on an empty Value reports absent.
func New[T any]() *Value[T] {
	return &Value[T]{now: time.Now}
}

// NewWithClock returns an empty Value using the given clock. Tests use
// this to control time.
func NewWithClock[T any](now func() time.Time) *Value[T] {
	return &Value[T]{now: now}
}

// Set stores v, valid for ttl from now.
func (e *Value[T]) Set(v T, ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
	e.deadline = e.now().Add(ttl)
}

// Get returns the stored value and true if it has not expired.
// Otherwise it returns the zero value and false.
func (e *Value[T]) Get() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deadline.IsZero() || !e.now().Before(e.deadline) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Deadline returns the current expiry deadline (zero if never set).
func (e *Value[T]) Deadline() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deadline
}

// Invalidate discards the stored value immediately.
func (e *Value[T]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadline = time.Time{}
}

// GetOrCompute returns the cached value if fresh, otherwise calls compute,
// stores its result for ttl, and returns it. compute errors are passed
// through without caching.
func (e *Value[T]) GetOrCompute(ttl time.Duration, compute func() (T, error)) (T, error) {
	if v, ok := e.Get(); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	e.Set(v, ttl)
	return v, nil
}
