package tui

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/search"
	"github.com/pders01/skim/internal/storage"
)

var colorRed = color.NRGBA{R: 255, A: 255}

// stubProvider pages through a fixed item list. Resolve returns the body as
// text unless resolve is set.
type stubProvider struct {
	items    []prefetch.Item
	pageSize int
	resolve  func(*prefetch.Item) (prefetch.Payload, error)

	mu    sync.Mutex
	calls map[string]int
}

func newStubProvider(n int, title func(int) string) *stubProvider {
	items := make([]prefetch.Item, n)
	for i := range items {
		items[i] = prefetch.Item{
			ID:        fmt.Sprintf("post-%d", i),
			Title:     title(i),
			Author:    "gopher",
			Score:     i,
			URL:       fmt.Sprintf("https://example.com/post-%d", i),
			Permalink: fmt.Sprintf("https://example.com/comments/%d", i),
			Body:      fmt.Sprintf("hello from post %d", i),
			Published: time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return &stubProvider{items: items, pageSize: 5, calls: make(map[string]int)}
}

func (p *stubProvider) PullPage(_ context.Context, cursor prefetch.Cursor) (prefetch.Page, error) {
	offset := 0
	if cursor != "" {
		var err error
		if offset, err = strconv.Atoi(string(cursor)); err != nil {
			return prefetch.Page{}, err
		}
	}
	end := min(offset+p.pageSize, len(p.items))
	page := make([]prefetch.Item, end-offset)
	copy(page, p.items[offset:end])
	return prefetch.Page{
		Items:     page,
		Next:      prefetch.Cursor(strconv.Itoa(end)),
		Exhausted: end >= len(p.items),
	}, nil
}

func (p *stubProvider) Resolve(_ context.Context, item *prefetch.Item) (prefetch.Payload, error) {
	p.mu.Lock()
	p.calls[item.ID]++
	p.mu.Unlock()
	if p.resolve != nil {
		return p.resolve(item)
	}
	return prefetch.Payload{Kind: prefetch.PayloadText, Text: item.Body, URL: item.URL}, nil
}

func (p *stubProvider) resolveCalls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

type stubLibrary struct {
	mu        sync.Mutex
	providers map[string]prefetch.Provider
	feeds     []*storage.Feed
	deleted   []string
	archived  []string
}

func newStubLibrary() *stubLibrary {
	return &stubLibrary{providers: make(map[string]prefetch.Provider)}
}

func (l *stubLibrary) add(input string, p prefetch.Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.providers[input] = p
	l.feeds = append(l.feeds, testFeed(input))
}

func testFeed(input string) *storage.Feed {
	return &storage.Feed{
		ID:       "id-" + input,
		URL:      "https://example.com/" + input,
		Title:    "Feed " + input,
		Provider: "rss",
	}
}

func (l *stubLibrary) lookup(input string) (prefetch.Provider, *storage.Feed, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, p := range l.providers {
		f := testFeed(key)
		if key == input || f.ID == input || f.URL == input {
			return p, f, nil
		}
	}
	return nil, nil, fmt.Errorf("unknown feed %q", input)
}

func (l *stubLibrary) Open(_ context.Context, input string) (prefetch.Provider, *storage.Feed, error) {
	return l.lookup(input)
}

func (l *stubLibrary) OpenArchived(input string) (prefetch.Provider, *storage.Feed, error) {
	l.mu.Lock()
	l.archived = append(l.archived, input)
	l.mu.Unlock()
	return l.lookup(input)
}

func (l *stubLibrary) Feeds() ([]*storage.Feed, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*storage.Feed(nil), l.feeds...), nil
}

func (l *stubLibrary) DeleteFeed(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, id)
	kept := l.feeds[:0]
	for _, f := range l.feeds {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	l.feeds = kept
	return nil
}

type stubLauncher struct {
	opened []string
}

func (l *stubLauncher) Open(rawURL string) error {
	l.opened = append(l.opened, rawURL)
	return nil
}

func newTestApp(t *testing.T, lib Library, opts Options) (*App, *stubLauncher) {
	t.Helper()
	cfg := config.TestConfig()
	idx, err := search.NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	launcher := &stubLauncher{}
	app := NewApp(context.Background(), cfg, lib, idx, launcher, opts)
	t.Cleanup(app.Close)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, launcher
}

// openNow runs the open command synchronously and feeds its result back.
func openNow(t *testing.T, app *App, input string) {
	t.Helper()
	app.Update(app.openFeed(input)())
	require.NoError(t, app.err)
	require.NotNil(t, app.session)
}

// drive ticks the app until cond holds or the deadline passes.
func drive(t *testing.T, app *App, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached; stats %+v", app.session.Stats())
		}
		app.Update(tickMsg{})
		time.Sleep(time.Millisecond)
	}
	// one more frame so list and reader reflect the final state
	app.Update(tickMsg{})
}

func press(app *App, msg tea.KeyMsg) tea.Cmd {
	_, cmd := app.Update(msg)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func alternating(i int) string {
	if i%2 == 0 {
		return fmt.Sprintf("rust news %d", i)
	}
	return fmt.Sprintf("go tips %d", i)
}
