package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/storage"
)

// ArchiveProvider pages through items archived in the local database.
type ArchiveProvider struct {
	store    *storage.Store
	feedID   string
	pageSize int
	resolver *Resolver
}

func NewArchiveProvider(store *storage.Store, feedID string, pageSize int, resolver *Resolver) *ArchiveProvider {
	if pageSize <= 0 {
		pageSize = 15
	}
	return &ArchiveProvider{store: store, feedID: feedID, pageSize: pageSize, resolver: resolver}
}

func (p *ArchiveProvider) PullPage(_ context.Context, cursor prefetch.Cursor) (prefetch.Page, error) {
	offset, err := offsetCursor(cursor)
	if err != nil {
		return prefetch.Page{}, err
	}

	// one extra row tells us whether another page exists
	stored, err := p.store.GetItems(p.feedID, offset, p.pageSize+1)
	if err != nil {
		return prefetch.Page{}, err
	}
	exhausted := len(stored) <= p.pageSize
	if !exhausted {
		stored = stored[:p.pageSize]
	}

	page := prefetch.Page{
		Items:     make([]prefetch.Item, 0, len(stored)),
		Next:      nextCursor(offset + len(stored)),
		Exhausted: exhausted,
	}
	for _, it := range stored {
		page.Items = append(page.Items, fromStored(it))
	}
	return page, nil
}

func (p *ArchiveProvider) Resolve(ctx context.Context, item *prefetch.Item) (prefetch.Payload, error) {
	return p.resolver.Resolve(ctx, item)
}

func fromStored(it *storage.Item) prefetch.Item {
	return prefetch.Item{
		ID:        it.ID,
		Title:     it.Title,
		Author:    it.Author,
		Score:     it.Score,
		URL:       it.URL,
		Permalink: it.Permalink,
		Body:      it.Body,
		Published: it.Published,
	}
}

func toStored(items []prefetch.Item) []*storage.Item {
	stored := make([]*storage.Item, 0, len(items))
	for _, it := range items {
		stored = append(stored, &storage.Item{
			ID:        it.ID,
			Title:     it.Title,
			Author:    it.Author,
			Score:     it.Score,
			URL:       it.URL,
			Permalink: it.Permalink,
			Body:      it.Body,
			Published: it.Published,
		})
	}
	return stored
}

type metaSource interface {
	Meta() FeedMeta
}

// Archiving wraps a live provider and writes every pulled page to the
// database. When the live feed answers "not modified" on its first pull the
// session continues from the archive instead.
type Archiving struct {
	live    prefetch.Provider
	archive *ArchiveProvider
	store   *storage.Store

	mu      sync.Mutex
	feed    *storage.Feed
	offline bool
}

func NewArchiving(live prefetch.Provider, store *storage.Store, feed *storage.Feed, pageSize int, resolver *Resolver) *Archiving {
	return &Archiving{
		live:    live,
		archive: NewArchiveProvider(store, feed.ID, pageSize, resolver),
		store:   store,
		feed:    feed,
	}
}

func (a *Archiving) PullPage(ctx context.Context, cursor prefetch.Cursor) (prefetch.Page, error) {
	if a.Offline() {
		return a.archive.PullPage(ctx, cursor)
	}

	page, err := a.live.PullPage(ctx, cursor)
	if errors.Is(err, ErrNotModified) && cursor == "" {
		debuglog.Infof("feed %s not modified, reading archive", a.feed.URL)
		a.mu.Lock()
		a.offline = true
		a.mu.Unlock()
		return a.archive.PullPage(ctx, cursor)
	}
	if err != nil {
		return page, err
	}

	if _, err := a.store.AppendItems(a.feed.ID, toStored(page.Items)); err != nil {
		debuglog.Warnf("archiving page of %s: %v", a.feed.URL, err)
	}
	a.recordFetch()
	return page, nil
}

func (a *Archiving) recordFetch() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	a.feed.LastFetched = now
	a.feed.UpdatedAt = now
	if src, ok := a.live.(metaSource); ok {
		meta := src.Meta()
		if meta.Title != "" {
			a.feed.Title = meta.Title
		}
		if meta.Description != "" {
			a.feed.Description = meta.Description
		}
		a.feed.ETag = meta.Validators.ETag
		a.feed.LastModified = meta.Validators.LastModified
	}
	if err := a.store.SaveFeed(a.feed); err != nil {
		debuglog.Warnf("saving feed %s: %v", a.feed.URL, err)
	}
}

func (a *Archiving) Resolve(ctx context.Context, item *prefetch.Item) (prefetch.Payload, error) {
	if a.Offline() {
		return a.archive.Resolve(ctx, item)
	}
	return a.live.Resolve(ctx, item)
}

// Offline reports whether the session switched to the archive.
func (a *Archiving) Offline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offline
}
