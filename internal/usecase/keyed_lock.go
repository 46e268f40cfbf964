package usecase

import "sync"

// keyedLock serializes work per key. Settlement holds the transaction's lock
// for the whole approve sequence, so two deciders on the same transaction id
// never interleave and the compensation path stays a safety net.
type keyedLock struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[int64]*lockEntry)}
}

// Lock blocks until the key's lock is held and returns the unlock func.
// Entries are reference counted and dropped once the last holder releases,
// so the map does not grow with the number of transactions ever settled.
func (k *keyedLock) Lock(key int64) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
