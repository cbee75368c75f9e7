package store

import "maps"

// WritableMap is an observable map. Every change produces a new map, so
// values passed to subscribers and returned by Snapshot may be kept but
// must not be modified.
type WritableMap[K comparable, V any] struct {
	w *Writable[map[K]V]
}

// NewWritableMap returns an empty map store.
func NewWritableMap[K comparable, V any]() *WritableMap[K, V] {
	return &WritableMap[K, V]{w: NewWritable(map[K]V{})}
}

// Reconstruct replaces every entry.
func (m *WritableMap[K, V]) Reconstruct(entries map[K]V) {
	m.w.Set(cloneMap(entries))
}

// Set stores one entry.
func (m *WritableMap[K, V]) Set(k K, v V) {
	m.w.Update(func(cur map[K]V) map[K]V {
		next := cloneMap(cur)
		next[k] = v
		return next
	})
}

// Delete removes one entry.
func (m *WritableMap[K, V]) Delete(k K) {
	m.w.Update(func(cur map[K]V) map[K]V {
		next := cloneMap(cur)
		delete(next, k)
		return next
	})
}

// Lookup returns the value stored for k.
func (m *WritableMap[K, V]) Lookup(k K) (V, bool) {
	v, ok := m.w.Get()[k]
	return v, ok
}

// Get returns the current map.
func (m *WritableMap[K, V]) Get() map[K]V { return m.w.Get() }

// Snapshot returns a copy of the current map.
func (m *WritableMap[K, V]) Snapshot() map[K]V { return cloneMap(m.w.Get()) }

// Subscribe registers fn and calls it with the current map.
func (m *WritableMap[K, V]) Subscribe(fn func(map[K]V)) func() { return m.w.Subscribe(fn) }

var _ Readable[map[string]int] = (*WritableMap[string, int])(nil)

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	if src == nil {
		return map[K]V{}
	}
	return maps.Clone(src)
}
