package syncx

import "sync"

// Map is a typed wrapper around sync.Map so callers don't have to
// repeat type assertions at every load site.
type Map[K comparable, V any] struct {
	inner sync.Map
}

func (m *Map[K, V]) Store(key K, value V) {
	m.inner.Store(key, value)
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.inner.Load(key)

	if !ok {
		var zero V
		return zero, false
	}

	return value.(V), true
}

func (m *Map[K, V]) Delete(key K) {
	m.inner.Delete(key)
}

func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.inner.Range(func(key, value any) bool {
		return fn(key.(K), value.(V))
	})
}

func (m *Map[K, V]) Len() int {
	count := 0
	m.inner.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
