package feed

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/skim/internal/media"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/validation"
)

func newLinkServer(t *testing.T) (*httptest.Server, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
	pngBody := buf.Bytes()

	mux := http.NewServeMux()
	mux.HandleFunc("/pic.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	mux.HandleFunc("/pic", func(w http.ResponseWriter, r *http.Request) {
		// no content type; the body is sniffed
		w.Header()["Content-Type"] = nil
		w.Write(pngBody)
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Fallback</title>
<meta property="og:title" content="Big   News">
<meta name="description" content="Something happened."></head><body><p>text</p></body></html>`))
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("just notes"))
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("PK"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, pngBody
}

func TestResolver_Resolve(t *testing.T) {
	server, pngBody := newLinkServer(t)
	resolver := newTestResolver(t, newTestFetcher())

	tests := []struct {
		name string
		item prefetch.Item
		want prefetch.Payload
	}{
		{
			name: "plain body",
			item: prefetch.Item{Title: "t", Body: "hello world"},
			want: prefetch.Payload{Kind: prefetch.PayloadText, Text: "hello world"},
		},
		{
			name: "html body becomes markdown",
			item: prefetch.Item{Body: "<p>Hello <strong>there</strong></p>"},
			want: prefetch.Payload{Kind: prefetch.PayloadText, Text: "Hello **there**"},
		},
		{
			name: "no body and no link",
			item: prefetch.Item{Title: "Only a title"},
			want: prefetch.Payload{Kind: prefetch.PayloadText, Text: "Only a title"},
		},
		{
			name: "image link",
			item: prefetch.Item{URL: server.URL + "/pic.png"},
			want: prefetch.Payload{Kind: prefetch.PayloadImage, URL: server.URL + "/pic.png", Raw: pngBody},
		},
		{
			name: "image sniffed from body",
			item: prefetch.Item{URL: server.URL + "/pic"},
			want: prefetch.Payload{Kind: prefetch.PayloadImage, URL: server.URL + "/pic", Raw: pngBody},
		},
		{
			name: "web page summary",
			item: prefetch.Item{URL: server.URL + "/article"},
			want: prefetch.Payload{Kind: prefetch.PayloadMarkup, URL: server.URL + "/article", Text: "Big News\n\nSomething happened."},
		},
		{
			name: "plain text link",
			item: prefetch.Item{URL: server.URL + "/notes.txt"},
			want: prefetch.Payload{Kind: prefetch.PayloadText, URL: server.URL + "/notes.txt", Text: "just notes"},
		},
		{
			name: "other content",
			item: prefetch.Item{URL: server.URL + "/blob"},
			want: prefetch.Payload{Kind: prefetch.PayloadMarkup, URL: server.URL + "/blob", Text: "application/zip"},
		},
		{
			name: "video is not fetched",
			item: prefetch.Item{URL: server.URL + "/clip.mp4"},
			want: prefetch.Payload{Kind: prefetch.PayloadMarkup, URL: server.URL + "/clip.mp4", Text: "video link"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), &tt.item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	server, _ := newLinkServer(t)

	t.Run("http error", func(t *testing.T) {
		resolver := newTestResolver(t, newTestFetcher())
		_, err := resolver.Resolve(context.Background(), &prefetch.Item{URL: server.URL + "/gone"})
		assert.Error(t, err)
	})

	t.Run("local link rejected by strict validator", func(t *testing.T) {
		detector, err := media.NewTypeDetector()
		require.NoError(t, err)
		resolver := NewResolver(newTestFetcher(), detector, validation.NewFeedURLValidator())
		_, err = resolver.Resolve(context.Background(), &prefetch.Item{URL: server.URL + "/notes.txt"})
		assert.ErrorIs(t, err, validation.ErrForbiddenHost)
	})

	t.Run("bad scheme", func(t *testing.T) {
		resolver := newTestResolver(t, newTestFetcher())
		_, err := resolver.Resolve(context.Background(), &prefetch.Item{URL: "ftp://example.com/file"})
		assert.ErrorIs(t, err, validation.ErrInvalidURL)
	})
}

func TestSummarize(t *testing.T) {
	page := []byte(`<html><head><title> Only   title </title></head><body><p>First paragraph.</p></body></html>`)
	assert.Equal(t, "Only title\n\nFirst paragraph.", summarize(page))
	assert.Equal(t, "", summarize([]byte("")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefghij", 5))
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, looksLikeHTML("<p>x</p>"))
	assert.True(t, looksLikeHTML("line<br/>break"))
	assert.False(t, looksLikeHTML("a < b and c > d"))
	assert.False(t, looksLikeHTML("plain text"))
}
