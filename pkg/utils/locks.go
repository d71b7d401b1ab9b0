package utils

import "sync"

/*
KeyedMutex hands out one mutex per key, so work on different keys never
contends. Entries are reference counted and dropped once nobody holds or waits
on them.
*/
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

/*
Lock acquires the mutex for key and returns the function that releases it.
*/
func (km *KeyedMutex) Lock(key string) func() {
	km.mu.Lock()

	if km.locks == nil {
		km.locks = make(map[string]*keyedEntry)
	}

	entry, ok := km.locks[key]

	if !ok {
		entry = &keyedEntry{}
		km.locks[key] = entry
	}

	entry.refs++
	km.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		km.mu.Lock()
		entry.refs--

		if entry.refs == 0 {
			delete(km.locks, key)
		}

		km.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (km *KeyedMutex) Len() int {
	km.mu.Lock()
	defer km.mu.Unlock()

	return len(km.locks)
}
