// Package cache memoizes solve results by canonical key. Concurrent callers
// asking for the same key share one computation.
package cache

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo is a concurrency-safe memo table. Successful results are kept until
// Reset; errors are never cached.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	limit   int
	group   singleflight.Group

	hits, misses uint64
}

// NewMemo returns a memo holding at most limit entries. A non-positive
// limit means unbounded. When full, new results are returned but not stored.
func NewMemo[V any](limit int) *Memo[V] {
	return &Memo[V]{entries: make(map[string]V), limit: limit}
}

// Get returns the cached value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Do returns the cached value for key, or calls fn once for all concurrent
// callers of the same key. shared reports whether the value came from the
// table or from another caller's computation.
func (m *Memo[V]) Do(key string, fn func() (V, error)) (v V, shared bool, err error) {
	if v, ok := m.Get(key); ok {
		m.mu.Lock()
		m.hits++
		m.mu.Unlock()
		return v, true, nil
	}

	res, err, shared := m.group.Do(key, func() (any, error) {
		v, err := fn()
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.misses++
		if m.limit <= 0 || len(m.entries) < m.limit {
			m.entries[key] = v
		}
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, shared, err
	}
	typed, ok := res.(V)
	if !ok {
		var zero V
		return zero, shared, fmt.Errorf("cache: unexpected value type %T for key %q", res, key)
	}
	return typed, shared, nil
}

// Len returns the number of stored entries.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns the number of table hits and computed misses.
func (m *Memo[V]) Stats() (hits, misses uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}

// Reset drops every stored entry.
func (m *Memo[V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]V)
	m.hits, m.misses = 0, 0
}
