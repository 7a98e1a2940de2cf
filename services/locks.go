package services

import "sync"

// keyedLocks serializes work per key. The feed pipeline uses it two ways:
// per feeling id around read->apply->write (so two concurrent toggles on the
// same feeling cannot lose an update) and per client token around create
// (so the dual-path post dedup cannot race itself). Work on different keys
// proceeds in parallel. Entries are refcounted and removed when the last
// holder unlocks, so the map stays bounded by in-flight work.
type keyedLocks[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks[K comparable]() *keyedLocks[K] {
	return &keyedLocks[K]{
		locks: make(map[K]*lockEntry),
	}
}

func (l *keyedLocks[K]) Lock(key K) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()
	e.mu.Lock()
}

func (l *keyedLocks[K]) Unlock(key K) {
	l.mu.Lock()
	e := l.locks[key]
	if e == nil {
		l.mu.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
	e.mu.Unlock()
}
