// Package lock provides per-key mutual exclusion inside one process.
package lock

import "sync"

// KeyedMutex hands out one mutex per key. Entries are reference counted and
// dropped once no caller holds or waits on them, so the map does not grow
// with every key ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

func (k *KeyedMutex) acquire(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Lock blocks until key is free.
func (k *KeyedMutex) Lock(key string) {
	k.acquire(key).mu.Lock()
}

// TryLock takes key if it is free and reports whether it did. It never
// blocks.
func (k *KeyedMutex) TryLock(key string) bool {
	e := k.acquire(key)
	if e.mu.TryLock() {
		return true
	}
	k.release(key, e)
	return false
}

// Unlock releases key. Unlocking a key that is not held panics, as with
// sync.Mutex.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key " + key)
	}
	e.mu.Unlock()
	k.release(key, e)
}

// size reports how many keys are held or waited on.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
