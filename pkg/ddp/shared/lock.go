// Package shared provides the locking primitives used to share mutable client
// state between the transport's read goroutine and application goroutines.
//
// A Lock is a plain mutual-exclusion lock with a scoped helper. Atomic pairs a
// Lock with a single value, and Dict builds a copy-on-write map on top of one
// Atomic. None of them are reentrant.
package shared

import "sync"

// Lock wraps a single mutex. The zero value is an unlocked Lock.
//
// Releasing a Lock that is not held is a fatal runtime error, not a
// recoverable one.
type Lock struct {
	mu sync.Mutex
}

// Acquire blocks until the lock is held by the caller.
func (l *Lock) Acquire() {
	l.mu.Lock()
}

// TryAcquire acquires the lock if it is free and reports whether it did.
func (l *Lock) TryAcquire() bool {
	return l.mu.TryLock()
}

// Release gives up the lock. Only the holder may call it.
func (l *Lock) Release() {
	l.mu.Unlock()
}

// Do runs fn while holding the lock and returns its error. The lock is
// released on every exit path, including a panic inside fn.
func (l *Lock) Do(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return fn()
}
