package shared

// Atomic holds one value of type T. Every read and write of the value happens
// while its Lock is held.
type Atomic[T any] struct {
	lock  Lock
	value T
}

// NewAtomic creates an Atomic holding initial.
func NewAtomic[T any](initial T) *Atomic[T] {
	return &Atomic[T]{value: initial}
}

// Get returns the current value.
func (a *Atomic[T]) Get() T {
	a.lock.Acquire()
	defer a.lock.Release()

	return a.value
}

// Set replaces the current value.
func (a *Atomic[T]) Set(value T) {
	a.lock.Acquire()
	defer a.lock.Release()

	a.value = value
}

// Swap replaces the current value and returns the previous one.
func (a *Atomic[T]) Swap(value T) T {
	a.lock.Acquire()
	defer a.lock.Release()

	old := a.value
	a.value = value
	return old
}

// Modify replaces the current value with fn(current) and returns the value
// fn was given. fn must not call back into the same Atomic.
func (a *Atomic[T]) Modify(fn func(T) T) T {
	a.lock.Acquire()
	defer a.lock.Release()

	old := a.value
	a.value = fn(old)
	return old
}

// With runs a read-only computation against the current value of a inside a
// single critical section and returns its result. fn must not call back into a.
func With[T, R any](a *Atomic[T], fn func(T) R) R {
	a.lock.Acquire()
	defer a.lock.Release()

	return fn(a.value)
}
