package collection

import (
	"container/list"
	"sync"
)

// lockCache is a bounded, LRU-evicted map of per-entity-id mutexes
// (spec.md §4.3 "A bounded lock cache (LRU by id, capacity =
// max-cached-locks) prevents unbounded lock growth; eviction of a
// lock is safe only when no holder exists"). Acquire/Release wrap the
// per-id mutex; eviction is attempted opportunistically on Release.
type lockCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element // id -> element wrapping *lockEntry
	order    *list.List               // front = most recently used
}

type lockEntry struct {
	id       string
	mu       sync.Mutex
	refCount int
}

func newLockCache(capacity int) *lockCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &lockCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Acquire locks the mutex associated with id, creating it if absent,
// and returns the entry so Release can be called with the exact same
// handle.
func (c *lockCache) Acquire(id string) *lockEntry {
	c.mu.Lock()
	elem, ok := c.entries[id]
	var entry *lockEntry
	if ok {
		entry = elem.Value.(*lockEntry)
		c.order.MoveToFront(elem)
	} else {
		entry = &lockEntry{id: id}
		elem = c.order.PushFront(entry)
		c.entries[id] = elem
	}
	entry.refCount++
	c.mu.Unlock()

	entry.mu.Lock()
	return entry
}

// Release unlocks entry and makes it eligible for LRU eviction once no
// other holder references it.
func (c *lockCache) Release(entry *lockEntry) {
	entry.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	entry.refCount--
	c.evictLocked()
}

// evictLocked drops least-recently-used zero-refcount entries until
// the cache is back under capacity. Caller must hold c.mu.
func (c *lockCache) evictLocked() {
	for c.order.Len() > c.capacity {
		victim := c.order.Back()
		if victim == nil {
			return
		}
		entry := victim.Value.(*lockEntry)
		if entry.refCount > 0 {
			// Still held somewhere in the chain; nothing further back
			// is more evictable without risking an active holder, so
			// walk forward looking for any zero-refcount candidate.
			evicted := false
			for e := victim.Prev(); e != nil; e = e.Prev() {
				if e.Value.(*lockEntry).refCount == 0 {
					c.order.Remove(e)
					delete(c.entries, e.Value.(*lockEntry).id)
					evicted = true
					break
				}
			}
			if !evicted {
				return
			}
			continue
		}
		c.order.Remove(victim)
		delete(c.entries, entry.id)
	}
}
