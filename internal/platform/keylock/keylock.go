// Package keylock provides mutual exclusion per string key.
// Entries are reference counted and removed when no goroutine holds or waits for them.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{} // capacity 1: a token means locked
	refs int
}

// Map is a set of independent locks keyed by string.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

func (m *Map) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Map) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Lock blocks until key is free or ctx is done. On success the returned
// unlock must be called once.
func (m *Map) Lock(ctx context.Context, key string) (unlock func(), err error) {
	e := m.ref(key)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.unref(key, e)
		})
	}, nil
}

// Do runs fn while holding key.
func (m *Map) Do(ctx context.Context, key string, fn func() error) error {
	unlock, err := m.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
