package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/prefetch"
)

// Index is an in-memory bleve index over the items of the current feed.
type Index struct {
	mu    sync.RWMutex
	idx   bleve.Index
	items map[prefetch.Index]*prefetch.Item
}

var _ Searcher = (*Index)(nil)

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating search index: %w", err)
	}
	return &Index{idx: idx, items: make(map[prefetch.Index]*prefetch.Item)}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.IncludeTermVectors = true

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name

	body := bleve.NewTextFieldMapping()
	body.Analyzer = standard.Name
	body.Store = false
	body.IncludeTermVectors = false

	url := bleve.NewTextFieldMapping()
	url.Analyzer = standard.Name

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("author", author)
	dm.AddFieldMappingsAt("body", body)
	dm.AddFieldMappingsAt("url", url)

	im.DefaultMapping = dm
	return im
}

// Add indexes items as they are appended to the session.
func (x *Index) Add(items []*prefetch.Item) error {
	if len(items) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	batch := x.idx.NewBatch()
	for _, it := range items {
		if err := batch.Index(docID(it.Index), map[string]any{
			"title":  it.Title,
			"author": it.Author,
			"body":   it.Body,
			"url":    it.URL,
		}); err != nil {
			return fmt.Errorf("indexing item %s: %w", it.ID, err)
		}
		x.items[it.Index] = it
	}
	return x.idx.Batch(batch)
}

// Search ranks indexed items against query. Queries shorter than two
// characters return nothing.
func (x *Index) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	// Tokenize input and build an OR of per-term matches across key fields with boosts
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []*Result{}, nil
	}
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		qs = append(qs,
			fieldMatch(tok, "title", 4.0), fieldPrefix(tok, "title", 3.5),
			fieldMatch(tok, "author", 2.0),
			fieldMatch(tok, "body", 1.0), fieldPrefix(tok, "body", 0.8),
			fieldMatch(tok, "url", 0.5),
		)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if limit <= 0 {
		limit = len(x.items)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	res, err := x.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	now := time.Now()
	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		item, ok := x.items[prefetch.Index(i)]
		if !ok {
			continue
		}
		r := &Result{Item: item, Score: h.Score}
		if local := ScoreItem(item, tokens, now); local != nil {
			r.Matches = local.Matches
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Filter returns a predicate accepting the items matching query. Short
// queries and index failures fall back to MatchTerms.
func (x *Index) Filter(query string) (prefetch.Filter, error) {
	if len(strings.TrimSpace(query)) < 2 || len(tokenize(query)) == 0 {
		return MatchTerms(query), nil
	}

	// Taken before the query so anything indexed later is matched by terms.
	seen := x.snapshot()

	results, err := x.Search(query, 0)
	if err != nil {
		debuglog.Warnf("search index failed, matching terms instead: %v", err)
		return MatchTerms(query), err
	}

	hits := make(map[prefetch.Index]bool, len(results))
	for _, r := range results {
		hits[r.Item.Index] = true
	}
	fallback := MatchTerms(query)
	return func(item *prefetch.Item) bool {
		if hits[item.Index] {
			return true
		}
		if seen[item.Index] {
			return false
		}
		return fallback(item)
	}, nil
}

// snapshot returns the set of indices searchable right now.
func (x *Index) snapshot() map[prefetch.Index]bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	seen := make(map[prefetch.Index]bool, len(x.items))
	for i := range x.items {
		seen[i] = true
	}
	return seen
}

// Reset drops every document. Called when the session switches feeds.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("recreating search index: %w", err)
	}
	if err := x.idx.Close(); err != nil {
		debuglog.Warnf("closing search index: %v", err)
	}
	x.idx = fresh
	x.items = make(map[prefetch.Index]*prefetch.Item)
	return nil
}

// DocCount reports total documents in the index.
func (x *Index) DocCount() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, err := x.idx.DocCount()
	return int(n), err
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.idx.Close()
}

func fieldMatch(tok, field string, boost float64) bleveQuery.Query {
	q := bleve.NewMatchQuery(tok)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

func fieldPrefix(tok, field string, boost float64) bleveQuery.Query {
	q := bleve.NewPrefixQuery(strings.ToLower(tok))
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

func docID(i prefetch.Index) string {
	return strconv.Itoa(int(i))
}
