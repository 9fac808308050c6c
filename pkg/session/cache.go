package session

import (
	"sync"
	"time"
)

// EntryStatus tells whether a cached value can be trusted
type EntryStatus string

const (
	// EntryFresh is a value fetched after the last invalidation
	EntryFresh EntryStatus = "fresh"
	// EntryStale is a value that must be refetched before it is trusted
	EntryStale EntryStatus = "stale"
	// EntryError is the last good value (if any) of a key whose latest
	// fetch failed
	EntryError EntryStatus = "error"
)

// Entry is a snapshot of one cache slot
type Entry[V any] struct {
	Value     V
	HasValue  bool
	FetchedAt time.Time
	Status    EntryStatus
	Err       error
}

type slot[V any] struct {
	entry   Entry[V]
	version uint64
}

// Cache is a keyed query cache with explicit invalidation. Every fetch is
// started with Begin, which returns the version of the slot; Commit and Fail
// only apply when the slot was not invalidated in between, so a response
// that was requested before an invalidation is never trusted.
type Cache[V any] struct {
	mu    sync.Mutex
	slots map[string]*slot[V]
	now   func() time.Time
}

// NewCache creates an empty cache
func NewCache[V any](now func() time.Time) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		slots: make(map[string]*slot[V]),
		now:   now,
	}
}

func (c *Cache[V]) slot(key string) *slot[V] {
	s, ok := c.slots[key]
	if !ok {
		s = &slot[V]{entry: Entry[V]{Status: EntryStale}}
		c.slots[key] = s
	}
	return s
}

// Get returns the entry of key. ok is false when no value was ever stored;
// the entry may still carry the error of a failed first fetch.
func (c *Cache[V]) Get(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key]
	if !ok {
		return Entry[V]{}, false
	}
	return s.entry, s.entry.HasValue
}

// IsFresh reports whether key holds a value that can be used without fetching
func (c *Cache[V]) IsFresh(key string) bool {
	e, ok := c.Get(key)
	return ok && e.Status == EntryFresh
}

// Begin returns the version a fetch of key has to present to Commit or Fail
func (c *Cache[V]) Begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot(key).version
}

// Commit stores a fetched value. It returns false and drops the value when
// key was invalidated or overwritten after Begin.
func (c *Cache[V]) Commit(key string, version uint64, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slot(key)
	if s.version != version {
		return false
	}
	s.entry = Entry[V]{
		Value:     value,
		HasValue:  true,
		FetchedAt: c.now(),
		Status:    EntryFresh,
	}
	return true
}

// Fail records a failed fetch. The last good value is kept.
func (c *Cache[V]) Fail(key string, version uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slot(key)
	if s.version != version {
		return false
	}
	s.entry.Status = EntryError
	s.entry.Err = err
	return true
}

// Put stores a locally produced value, such as an optimistic edit. Fetches
// already in flight for key are discarded when they complete.
func (c *Cache[V]) Put(key string, value V, status EntryStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slot(key)
	s.version++
	s.entry = Entry[V]{
		Value:     value,
		HasValue:  true,
		FetchedAt: s.entry.FetchedAt,
		Status:    status,
	}
}

// Invalidate marks key stale. The value stays readable for display but the
// next read has to refetch it.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slot(key)
	s.version++
	s.entry.Status = EntryStale
	s.entry.Err = nil
}

// InvalidateAll marks every key stale
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.slots {
		s.version++
		s.entry.Status = EntryStale
		s.entry.Err = nil
	}
}

// size returns the number of keys holding a value
func (c *Cache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.slots {
		if s.entry.HasValue {
			n++
		}
	}
	return n
}
