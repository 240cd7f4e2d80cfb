package prefetch

import (
	"sort"
	"time"
)

// Index identifies an item within one feed session. Indices are assigned at
// append time and never reused until the store is reset.
type Index int

// Item is an immutable snapshot of one feed entry. Once appended to a Store
// the value is only ever read, so the pointer can be handed to workers.
type Item struct {
	Index     Index
	ID        string
	Title     string
	Author    string
	Score     int
	URL       string
	Permalink string
	Body      string
	Published time.Time
}

// Filter reports whether an item should be visible.
type Filter func(*Item) bool

// Store is the ordered, append-only sequence of fetched items.
// It is owned by the orchestrating goroutine and not safe for concurrent use.
type Store struct {
	items []*Item
}

func NewStore() *Store {
	return &Store{}
}

// Append copies items into the store, assigning indices that continue from
// the current length. The stored pointers are returned in order.
func (s *Store) Append(items []Item) []*Item {
	added := make([]*Item, 0, len(items))
	next := Index(len(s.items))
	for _, it := range items {
		item := it
		item.Index = next
		next++
		s.items = append(s.items, &item)
		added = append(added, &item)
	}
	return added
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) Get(i Index) (*Item, bool) {
	if i < 0 || int(i) >= len(s.items) {
		return nil, false
	}
	return s.items[i], true
}

// Reset drops every item. Indices restart at zero afterwards.
func (s *Store) Reset() {
	s.items = nil
}

// Visible returns the items passing every filter, in index order.
func (s *Store) Visible(filters map[string]Filter) []*Item {
	if len(filters) == 0 {
		return s.items
	}

	// Apply in a stable order so logging and debugging are reproducible.
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	visible := make([]*Item, 0, len(s.items))
outer:
	for _, item := range s.items {
		for _, name := range names {
			if !filters[name](item) {
				continue outer
			}
		}
		visible = append(visible, item)
	}
	return visible
}
