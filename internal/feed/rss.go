package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/pders01/skim/internal/prefetch"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8"

// FeedMeta is what a provider learned about its feed while pulling.
type FeedMeta struct {
	Title       string
	Description string
	Validators  Conditional
}

// RSSProvider reads an RSS, Atom or JSON feed. The document is fetched once,
// on the first pull, and then paged through locally.
type RSSProvider struct {
	url      string
	pageSize int
	fetcher  *Fetcher
	parser   *Parser
	resolver *Resolver

	mu     sync.Mutex
	cond   Conditional
	parsed *ParsedFeed
	meta   FeedMeta
}

// NewRSSProvider reads feedURL. cond carries validators from an earlier
// session; a 304 answer makes the first pull fail with ErrNotModified.
func NewRSSProvider(feedURL string, pageSize int, cond Conditional, fetcher *Fetcher, parser *Parser, resolver *Resolver) *RSSProvider {
	if pageSize <= 0 {
		pageSize = 15
	}
	return &RSSProvider{
		url:      feedURL,
		pageSize: pageSize,
		fetcher:  fetcher,
		parser:   parser,
		resolver: resolver,
		cond:     cond,
	}
}

func (p *RSSProvider) PullPage(ctx context.Context, cursor prefetch.Cursor) (prefetch.Page, error) {
	offset, err := offsetCursor(cursor)
	if err != nil {
		return prefetch.Page{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.parsed == nil {
		if err := p.load(ctx); err != nil {
			return prefetch.Page{}, err
		}
	}

	items := p.parsed.Items
	if offset > len(items) {
		offset = len(items)
	}
	end := min(offset+p.pageSize, len(items))

	page := prefetch.Page{
		Items:     append([]prefetch.Item(nil), items[offset:end]...),
		Next:      nextCursor(end),
		Exhausted: end >= len(items),
	}
	return page, nil
}

func (p *RSSProvider) load(ctx context.Context) error {
	resp, err := p.fetcher.Get(ctx, p.url, feedAccept, p.cond)
	if err != nil {
		return err
	}
	parsed, err := p.parser.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", p.url, err)
	}
	p.parsed = parsed
	p.meta = FeedMeta{
		Title:       parsed.Title,
		Description: parsed.Description,
		Validators:  Conditional{ETag: resp.ETag, LastModified: resp.LastModified},
	}
	return nil
}

func (p *RSSProvider) Resolve(ctx context.Context, item *prefetch.Item) (prefetch.Payload, error) {
	return p.resolver.Resolve(ctx, item)
}

// Meta is empty until the first successful pull.
func (p *RSSProvider) Meta() FeedMeta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta
}
