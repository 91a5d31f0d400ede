package shared

import "maps"

// Dict is a map guarded by a single Atomic holding an immutable snapshot.
// Every mutation installs a fresh copy of the whole map, so a snapshot handed
// to a reader is never written to again.
type Dict[K comparable, V any] struct {
	snapshot *Atomic[map[K]V]
}

// NewDict creates an empty Dict.
func NewDict[K comparable, V any]() *Dict[K, V] {
	return &Dict[K, V]{snapshot: NewAtomic(map[K]V{})}
}

func (d *Dict[K, V]) current() map[K]V {
	return d.snapshot.Get()
}

// Value returns the value bound to key. A missing key yields the zero value
// and false.
func (d *Dict[K, V]) Value(key K) (V, bool) {
	value, ok := d.current()[key]
	return value, ok
}

// Set binds key to value, replacing any previous binding.
func (d *Dict[K, V]) Set(key K, value V) {
	d.snapshot.Modify(func(old map[K]V) map[K]V {
		next := maps.Clone(old)
		next[key] = value
		return next
	})
}

// Remove deletes key. Removing a missing key does nothing.
func (d *Dict[K, V]) Remove(key K) {
	d.Take(key)
}

// Take removes key and returns the value it was bound to. Only one of several
// concurrent callers taking the same key sees ok == true.
func (d *Dict[K, V]) Take(key K) (value V, ok bool) {
	d.snapshot.Modify(func(old map[K]V) map[K]V {
		value, ok = old[key]
		if !ok {
			return old
		}
		next := maps.Clone(old)
		delete(next, key)
		return next
	})
	return value, ok
}

// Assign is the subscript form of Set and Remove: with ok false the key is
// removed, otherwise it is bound to value.
func (d *Dict[K, V]) Assign(key K, value V, ok bool) {
	if !ok {
		d.Remove(key)
		return
	}
	d.Set(key, value)
}

// Update atomically recomputes the binding for key. fn receives the current
// value (and whether it exists) and returns the new value and whether the key
// should stay bound. fn must not call back into the same Dict.
func (d *Dict[K, V]) Update(key K, fn func(V, bool) (V, bool)) {
	d.snapshot.Modify(func(old map[K]V) map[K]V {
		current, exists := old[key]
		value, keep := fn(current, exists)
		if !keep && !exists {
			return old
		}
		next := maps.Clone(old)
		if keep {
			next[key] = value
		} else {
			delete(next, key)
		}
		return next
	})
}

// Clear removes every binding.
func (d *Dict[K, V]) Clear() {
	d.snapshot.Set(map[K]V{})
}

// Len returns the number of bindings.
func (d *Dict[K, V]) Len() int {
	return len(d.current())
}

// IsEmpty reports whether the Dict has no bindings.
func (d *Dict[K, V]) IsEmpty() bool {
	return d.Len() == 0
}

// Copy returns the current contents as a map owned by the caller.
func (d *Dict[K, V]) Copy() map[K]V {
	return maps.Clone(d.current())
}

// Keys returns the keys of the current snapshot in no particular order.
func (d *Dict[K, V]) Keys() []K {
	snapshot := d.current()
	keys := make([]K, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	return keys
}

// Range calls fn for each binding of one snapshot until fn returns false.
// Mutations made while ranging, including from fn, are not observed.
func (d *Dict[K, V]) Range(fn func(K, V) bool) {
	for key, value := range d.current() {
		if !fn(key, value) {
			return
		}
	}
}
