package feed

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/media"
	"github.com/pders01/skim/internal/storage"
	"github.com/pders01/skim/internal/validation"
)

func newTestFetcher() *Fetcher {
	cfg := config.TestConfig()
	return NewFetcher(&cfg.Feed)
}

func newTestResolver(t *testing.T, fetcher *Fetcher) *Resolver {
	t.Helper()
	detector, err := media.NewTypeDetector()
	require.NoError(t, err)
	return NewResolver(fetcher, detector, validation.NewPermissiveFeedURLValidator())
}

func setupTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir()+"/test.db", 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// rssDocument builds an RSS 2.0 document with n items linking below base.
func rssDocument(title, base string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title><link>%s</link><description>test feed</description>`, title, base)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<item><title>Post %d</title><link>%s/posts/%d</link><guid>post-%d</guid><description>body %d</description><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>`, i, base, i, i, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

// feedServer serves an RSS document at /feed.xml and counts requests.
type feedServer struct {
	*httptest.Server
	hits atomic.Int32
	etag string
}

func newFeedServer(t *testing.T, items int) *feedServer {
	t.Helper()
	fs := &feedServer{etag: `"v1"`}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		fs.hits.Add(1)
		if r.Header.Get("If-None-Match") == fs.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", fs.etag)
		fmt.Fprint(w, rssDocument("Test Feed", fs.URL, items))
	}))
	t.Cleanup(fs.Close)
	return fs
}
