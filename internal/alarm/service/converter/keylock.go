package converter

import "sync"

// keyLocks serializes merge operations per merge key within this process.
// The lookup-then-write merge is not atomic at the store level; without this
// two concurrent notifications for the same key could both miss the lookup
// and insert duplicate events. Locks are created on demand and never freed;
// the key space is bounded by active incidents.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: map[string]*sync.Mutex{}}
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
