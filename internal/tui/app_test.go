package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/search"
	"github.com/pders01/skim/internal/storage"
)

func TestNewAppSource(t *testing.T) {
	lib := newStubLibrary()

	app, _ := newTestApp(t, lib, Options{})
	assert.Equal(t, app.config.Feed.Source, app.source)
	assert.Nil(t, app.session)
	assert.Equal(t, ViewPosts, app.view)

	offline, _ := newTestApp(t, lib, Options{Offline: true})
	assert.Empty(t, offline.source, "offline startup opens the first archived feed")

	explicit, _ := newTestApp(t, lib, Options{Source: "r/golang"})
	assert.Equal(t, "r/golang", explicit.source)
}

func TestOpenFeedLoadsAllPages(t *testing.T) {
	lib := newStubLibrary()
	lib.add("main", newStubProvider(30, alternating))
	app, _ := newTestApp(t, lib, Options{Source: "main"})

	openNow(t, app, "main")
	assert.Equal(t, "Feed main", app.currentFeed.Title)
	assert.Equal(t, "› Feed main", app.postList.Title)

	// the focus stays at 0, so pages are pulled until the window is covered
	drive(t, app, func() bool { return app.session.Stats().Items >= 15 })
	assert.Len(t, app.postList.Items(), app.session.Stats().Items)

	n, err := app.index.(search.DebugStatser).DocCount()
	require.NoError(t, err)
	assert.Equal(t, app.session.Stats().Items, n, "appended items are indexed")
}

func TestOpenFeedError(t *testing.T) {
	app, _ := newTestApp(t, newStubLibrary(), Options{Source: "missing"})

	app.Update(app.openFeed("missing")())
	require.Error(t, app.err)
	assert.Contains(t, app.err.Error(), "opening missing")
	assert.Nil(t, app.session)
	assert.Contains(t, app.View(), "✗")
}

func TestOfflineOpenUsesArchive(t *testing.T) {
	lib := newStubLibrary()
	lib.add("main", newStubProvider(3, alternating))
	app, _ := newTestApp(t, lib, Options{Source: "main", Offline: true})

	openNow(t, app, "main")
	assert.Equal(t, []string{"main"}, lib.archived)
}

func TestTickResolvesFocusedContent(t *testing.T) {
	lib := newStubLibrary()
	lib.add("main", newStubProvider(8, alternating))
	app, _ := newTestApp(t, lib, Options{Source: "main"})
	openNow(t, app, "main")

	drive(t, app, func() bool { return app.session.State(0) == prefetch.Resolved })

	item, ok := app.session.Focused()
	require.True(t, ok)
	out := app.contentView(item, 0, 80, 20)
	assert.Contains(t, out, "hello from post 0")

	_, cached := app.rendered[renderKey{index: item.Index, width: 80, height: 20}]
	assert.True(t, cached, "rendered output is reused")
}

func TestContentViewLoadingPlaceholder(t *testing.T) {
	lib := newStubLibrary()
	p := newStubProvider(3, alternating)
	block := make(chan struct{})
	p.resolve = func(*prefetch.Item) (prefetch.Payload, error) {
		<-block
		return prefetch.Payload{}, errors.New("released")
	}
	lib.add("main", p)
	app, _ := newTestApp(t, lib, Options{Source: "main"})
	// registered after the app so it runs before Close waits for workers
	t.Cleanup(func() { close(block) })
	openNow(t, app, "main")

	drive(t, app, func() bool { return app.session.State(0) == prefetch.Pending })
	item, _ := app.session.Focused()
	assert.Contains(t, app.contentView(item, 0, 80, 20), MsgLoading)
}

func TestImageContentRendersHalfBlocks(t *testing.T) {
	lib := newStubLibrary()
	p := newStubProvider(2, alternating)
	raw := pngBytes(t, 8, 8, colorRed)
	p.resolve = func(item *prefetch.Item) (prefetch.Payload, error) {
		return prefetch.Payload{Kind: prefetch.PayloadImage, URL: item.URL, Raw: raw}, nil
	}
	lib.add("pics", p)
	app, _ := newTestApp(t, lib, Options{Source: "pics"})
	openNow(t, app, "pics")

	drive(t, app, func() bool { return app.session.State(0) == prefetch.Resolved })
	c, ok := app.session.Content(0)
	require.True(t, ok)
	require.IsType(t, &prefetch.Image{}, c)

	item, _ := app.session.Focused()
	out := app.contentView(item, 0, 40, 10)
	assert.Contains(t, out, upperHalf)
	assert.Len(t, strings.Split(out, "\n"), 4, "8 pixel rows fit in 4 cells")
}

func TestUnsupportedContentPlaceholder(t *testing.T) {
	lib := newStubLibrary()
	p := newStubProvider(2, alternating)
	p.resolve = func(item *prefetch.Item) (prefetch.Payload, error) {
		return prefetch.Payload{Kind: prefetch.PayloadMarkup, URL: item.URL, Text: "A linked article"}, nil
	}
	lib.add("links", p)
	app, _ := newTestApp(t, lib, Options{Source: "links"})
	openNow(t, app, "links")

	drive(t, app, func() bool { return app.session.State(0) == prefetch.Resolved })
	item, _ := app.session.Focused()
	out := app.contentView(item, 0, 80, 20)
	assert.Contains(t, out, "A linked article")
	assert.Contains(t, out, "example.com/post-0")
	assert.Contains(t, out, "ctrl+o")
}

func TestReplaceFeedResetsState(t *testing.T) {
	lib := newStubLibrary()
	lib.add("first", newStubProvider(12, alternating))
	lib.add("second", newStubProvider(4, func(i int) string { return "second feed post" }))
	app, _ := newTestApp(t, lib, Options{Source: "first"})

	openNow(t, app, "first")
	drive(t, app, func() bool { return app.session.Stats().Items == 12 })
	app.query = "rust"
	app.session.SetFilter(searchFilter, search.MatchTerms("rust"))

	openNow(t, app, "second")
	assert.Empty(t, app.query)
	assert.Empty(t, app.rendered)
	assert.Equal(t, "second", app.source)

	drive(t, app, func() bool { return app.session.Stats().Exhausted })
	assert.Equal(t, 4, app.session.Stats().Visible, "filters are cleared on switch")
	for _, li := range app.postList.Items() {
		assert.Equal(t, "second feed post", li.(postItem).Title())
	}
}

func TestImmediatePostsPreview(t *testing.T) {
	lib := newStubLibrary()
	lib.add("main", newStubProvider(3, alternating))
	app, _ := newTestApp(t, lib, Options{Source: "main"})
	app.config.UI.ImmediatePosts = true
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	openNow(t, app, "main")

	drive(t, app, func() bool { return app.session.State(0) == prefetch.Resolved })
	view := app.View()
	assert.Contains(t, view, "rust news 0")
	assert.Contains(t, view, "hello from post 0", "the focused post renders next to the list")
}

func TestStatusBarShowsStats(t *testing.T) {
	lib := newStubLibrary()
	lib.add("main", newStubProvider(3, alternating))
	app, _ := newTestApp(t, lib, Options{Source: "main"})
	openNow(t, app, "main")
	drive(t, app, func() bool { return app.session.Stats().Exhausted && !app.session.Busy() })

	bar := app.statusBar()
	assert.Contains(t, bar, "3 posts")
	assert.Contains(t, bar, "end")
}

func TestWelcomeBeforeFirstFeed(t *testing.T) {
	app, _ := newTestApp(t, newStubLibrary(), Options{Source: "main"})
	app.opening = true
	assert.Contains(t, app.View(), MsgOpening)
}

func TestFeedItem(t *testing.T) {
	f := feedItem{feed: &storage.Feed{URL: "https://example.com/feed", Provider: "rss", Description: "news"}}
	assert.Equal(t, "https://example.com/feed", f.Title())
	assert.Equal(t, "rss • news", f.Description())
	assert.Equal(t, "Unknown Feed", feedTitle(nil))
}
