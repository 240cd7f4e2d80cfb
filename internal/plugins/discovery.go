package plugins

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pders01/skim/internal/validation"
)

const discoveryBodyLimit = 2 << 20

var feedLinkTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
}

// DiscoveryPlugin accepts any web address. When the address serves an HTML
// page it follows the page's <link rel="alternate"> to the feed.
type DiscoveryPlugin struct {
	validator *validation.FeedURLValidator
	userAgent string
}

func NewDiscoveryPlugin(validator *validation.FeedURLValidator, userAgent string) *DiscoveryPlugin {
	if validator == nil {
		validator = validation.NewFeedURLValidator()
	}
	return &DiscoveryPlugin{validator: validator, userAgent: userAgent}
}

func (p *DiscoveryPlugin) Name() string {
	return "discovery"
}

func (p *DiscoveryPlugin) CanHandle(input string) bool {
	input = strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") ||
		(strings.Contains(input, ".") && !strings.Contains(input, " "))
}

func (p *DiscoveryPlugin) Priority() int {
	return 0
}

func (p *DiscoveryPlugin) EnhanceFeed(ctx context.Context, input string, client *http.Client) (*FeedInfo, error) {
	pageURL, err := p.validator.ValidateAndNormalize(input)
	if err != nil {
		return nil, err
	}
	info := &FeedInfo{
		OriginalURL: input,
		FeedURL:     pageURL,
		Metadata:    map[string]string{"provider": ProviderRSS},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: HTTP %d", pageURL, resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/html" {
		// already a feed, or something the parser will reject with a clear error
		return info, nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, discoveryBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		info.Description = strings.TrimSpace(desc)
	}

	href, ok := findFeedLink(doc)
	if !ok {
		return nil, fmt.Errorf("no feed advertised by %s", pageURL)
	}
	base, _ := url.Parse(pageURL)
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("bad feed link %q: %w", href, err)
	}
	info.FeedURL = base.ResolveReference(ref).String()
	return info, nil
}

func findFeedLink(doc *goquery.Document) (string, bool) {
	var href string
	doc.Find(`link[rel~="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		for _, want := range feedLinkTypes {
			if typ == want {
				if h := strings.TrimSpace(s.AttrOr("href", "")); h != "" {
					href = h
					return false
				}
			}
		}
		return true
	})
	return href, href != ""
}
