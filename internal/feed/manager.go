package feed

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/media"
	"github.com/pders01/skim/internal/plugins"
	"github.com/pders01/skim/internal/plugins/user"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/storage"
	"github.com/pders01/skim/internal/validation"
)

// ErrNoArchive is returned when offline reading is asked of a manager
// without a database, or of a feed that was never archived.
var ErrNoArchive = errors.New("no archived feed")

// Manager turns user input into providers and keeps the feed records.
type Manager struct {
	store    *storage.Store
	fetcher  *Fetcher
	parser   *Parser
	detector *media.TypeDetector
	config   *config.Config

	mu           sync.RWMutex
	urlValidator *validation.FeedURLValidator
	resolver     *Resolver
	registry     *plugins.Registry
}

// NewManager wires the providers. store may be nil, in which case nothing is
// archived and offline reading is unavailable.
func NewManager(store *storage.Store, cfg *config.Config, detector *media.TypeDetector) *Manager {
	m := &Manager{
		store:    store,
		fetcher:  NewFetcher(&cfg.Feed),
		parser:   NewParser(),
		detector: detector,
		config:   cfg,
	}
	m.wire(validation.NewFeedURLValidator())
	return m
}

func (m *Manager) wire(v *validation.FeedURLValidator) {
	m.urlValidator = v
	m.resolver = NewResolver(m.fetcher, m.detector, v)
	m.registry = plugins.NewRegistry(m.config.Feed.HTTPTimeout)
	m.registry.Register(plugins.NewDiscoveryPlugin(v, m.config.Feed.UserAgent))
	m.registry.Register(user.NewRedditPlugin(m.config.Feed.Sort))
}

// SetPermissiveValidation allows localhost and private addresses, for
// development and tests.
func (m *Manager) SetPermissiveValidation(permissive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if permissive {
		m.wire(validation.NewPermissiveFeedURLValidator())
	} else {
		m.wire(validation.NewFeedURLValidator())
	}
}

// Open resolves input (a subreddit shorthand, a feed URL or a page that
// advertises one) into a provider. The feed record is saved when a database
// is configured.
func (m *Manager) Open(ctx context.Context, input string) (prefetch.Provider, *storage.Feed, error) {
	m.mu.RLock()
	registry, resolver, validator := m.registry, m.resolver, m.urlValidator
	m.mu.RUnlock()

	info, err := registry.EnhanceFeed(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	feedURL, err := validator.ValidateAndNormalize(info.FeedURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid feed URL: %w", err)
	}

	feed := m.feedRecord(info, feedURL)
	pageSize := m.config.Feed.PageSize

	var provider prefetch.Provider
	switch info.Provider() {
	case plugins.ProviderReddit:
		provider, err = NewRedditProvider(feedURL, info.Metadata["sort"], pageSize, m.fetcher, resolver)
		if err != nil {
			return nil, nil, err
		}
	case plugins.ProviderRSS:
		cond := Conditional{}
		if m.archiving() {
			cond = Conditional{ETag: feed.ETag, LastModified: feed.LastModified}
		}
		provider = NewRSSProvider(feedURL, pageSize, cond, m.fetcher, m.parser, resolver)
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", info.Provider())
	}

	if m.archiving() {
		if err := m.store.SaveFeed(feed); err != nil {
			return nil, nil, fmt.Errorf("saving feed: %w", err)
		}
		provider = NewArchiving(provider, m.store, feed, pageSize, resolver)
	}

	debuglog.WithFields(map[string]any{
		"provider": info.Provider(),
		"url":      feedURL,
	}).Infof("opened feed %s", feed.Title)
	return provider, feed, nil
}

// feedRecord returns the stored record for the feed, or a fresh one.
func (m *Manager) feedRecord(info *plugins.FeedInfo, feedURL string) *storage.Feed {
	id := generateFeedID(info.Provider() + ":" + feedURL)
	if m.store != nil {
		if existing, err := m.store.GetFeed(id); err == nil {
			if existing.Title == "" {
				existing.Title = info.Title
			}
			return existing
		}
	}
	return &storage.Feed{
		ID:          id,
		URL:         feedURL,
		Title:       info.Title,
		Description: info.Description,
		Provider:    info.Provider(),
		UpdatedAt:   time.Now(),
	}
}

func (m *Manager) archiving() bool {
	return m.store != nil && m.config.Database.Archive
}

// OpenArchived reads a feed from the database without touching the network
// for pages. input matches a feed id, URL, title or subreddit shorthand; an
// empty input picks the first stored feed.
func (m *Manager) OpenArchived(input string) (prefetch.Provider, *storage.Feed, error) {
	feed, err := m.FindFeed(input)
	if err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	resolver := m.resolver
	m.mu.RUnlock()
	return NewArchiveProvider(m.store, feed.ID, m.config.Feed.PageSize, resolver), feed, nil
}

// FindFeed looks up a stored feed by id, URL, title or URL suffix.
func (m *Manager) FindFeed(input string) (*storage.Feed, error) {
	feeds, err := m.Feeds()
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, ErrNoArchive
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return feeds[0], nil
	}

	suffix := "/" + strings.Trim(strings.ToLower(input), "/")
	for _, f := range feeds {
		switch {
		case f.ID == input, f.URL == input,
			strings.EqualFold(f.Title, input),
			strings.HasSuffix(strings.ToLower(f.URL), suffix):
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoArchive, input)
}

// Feeds lists the stored feeds, sorted by title.
func (m *Manager) Feeds() ([]*storage.Feed, error) {
	if m.store == nil {
		return nil, ErrNoArchive
	}
	return m.store.GetAllFeeds()
}

func (m *Manager) DeleteFeed(id string) error {
	if m.store == nil {
		return ErrNoArchive
	}
	return m.store.DeleteFeed(id)
}

func generateFeedID(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
