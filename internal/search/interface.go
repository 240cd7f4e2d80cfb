package search

import "github.com/pders01/skim/internal/prefetch"

// Searcher narrows a feed session to the items matching a query.
type Searcher interface {
	Add(items []*prefetch.Item) error
	Search(query string, limit int) ([]*Result, error)
	Filter(query string) (prefetch.Filter, error)
	Reset() error
}

// DebugStatser provides lightweight stats for visibility/debugging.
// Implemented by engines that can report index doc counts, etc.
type DebugStatser interface {
	DocCount() (int, error)
}
