package prefetch

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pders01/skim/internal/debuglog"
)

// DefaultCacheCapacity is the number of entries kept when no capacity is configured.
const DefaultCacheCapacity = 250

// EntryState is the lifecycle state of one cache key.
type EntryState int

const (
	Absent EntryState = iota
	Pending
	Resolved
)

func (s EntryState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Ticket identifies one pending period of a cache key. A key that is evicted
// or removed and then requested again gets a new ticket, so results fetched
// for the old entry can be told apart from results for the new one.
type Ticket uint64

// entry holds resolved content, or nil while a fetch is in progress.
type entry struct {
	content Content
	ticket  Ticket
}

// Cache is a fixed-capacity LRU of item content keyed by Index. Pending
// entries count against capacity and are evicted like any other.
type Cache struct {
	lru      *lru.Cache[Index, entry]
	capacity int
	evicted  int
	tickets  Ticket
}

func NewCache(capacity int) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	c := &Cache{capacity: capacity}
	l, err := lru.NewWithEvict[Index, entry](capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	c.lru = l
	return c, nil
}

func (c *Cache) onEvict(i Index, e entry) {
	c.evicted++
	if e.content == nil {
		debuglog.Debugf("cache: evicted pending entry %d", i)
	}
}

// Contains reports whether any entry exists for i. It does not touch recency.
func (c *Cache) Contains(i Index) bool {
	return c.lru.Contains(i)
}

// State reports the entry state without touching recency.
func (c *Cache) State(i Index) EntryState {
	e, ok := c.lru.Peek(i)
	switch {
	case !ok:
		return Absent
	case e.content == nil:
		return Pending
	default:
		return Resolved
	}
}

// MarkPending inserts a pending entry for i, evicting the least recently
// used entry when full. It returns false and changes nothing if i is present.
func (c *Cache) MarkPending(i Index) bool {
	if c.lru.Contains(i) {
		return false
	}
	c.tickets++
	present, _ := c.lru.ContainsOrAdd(i, entry{ticket: c.tickets})
	return !present
}

// Ticket returns the ticket of the entry for i, pending or resolved.
func (c *Cache) Ticket(i Index) (Ticket, bool) {
	e, ok := c.lru.Peek(i)
	return e.ticket, ok
}

// Resolve stores content for a pending entry.
func (c *Cache) Resolve(i Index, content Content) error {
	e, ok := c.lru.Peek(i)
	if !ok {
		return fmt.Errorf("resolve %d: %w", i, ErrNotCached)
	}
	if e.content != nil {
		return fmt.Errorf("resolve %d: %w", i, ErrNotPending)
	}
	c.lru.Add(i, entry{content: content, ticket: e.ticket})
	return nil
}

// Settle resolves the entry for i only if it still carries ticket t.
func (c *Cache) Settle(i Index, t Ticket, content Content) error {
	cur, ok := c.Ticket(i)
	if !ok {
		return fmt.Errorf("settle %d: %w", i, ErrNotCached)
	}
	if cur != t {
		return fmt.Errorf("settle %d: ticket %d, entry has %d: %w", i, t, cur, ErrStaleTicket)
	}
	return c.Resolve(i, content)
}

// Get returns resolved content for i and marks it most recently used.
// Pending entries are touched but report false.
func (c *Cache) Get(i Index) (Content, bool) {
	e, ok := c.lru.Get(i)
	if !ok || e.content == nil {
		return nil, false
	}
	return e.content, true
}

// Remove drops the entry for i so it can be fetched again.
func (c *Cache) Remove(i Index) bool {
	return c.lru.Remove(i)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Cap() int {
	return c.capacity
}

// Evictions counts entries dropped by capacity pressure, Remove or Purge.
func (c *Cache) Evictions() int {
	return c.evicted
}
