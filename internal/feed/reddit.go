package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pders01/skim/internal/prefetch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Score      int     `json:"score"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Selftext   string  `json:"selftext"`
	IsSelf     bool    `json:"is_self"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

// RedditProvider pages through a subreddit listing with the public JSON API.
// The cursor is the listing's "after" token.
type RedditProvider struct {
	listingURL string
	origin     string
	limit      int
	fetcher    *Fetcher
	resolver   *Resolver
}

// NewRedditProvider reads subredditURL, e.g. "https://www.reddit.com/r/rust",
// in the given sort order.
func NewRedditProvider(subredditURL, sort string, limit int, fetcher *Fetcher, resolver *Resolver) (*RedditProvider, error) {
	u, err := url.Parse(strings.TrimSuffix(subredditURL, "/"))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("bad subreddit URL %q", subredditURL)
	}
	if sort == "" {
		sort = "hot"
	}
	if limit <= 0 {
		limit = 15
	}
	return &RedditProvider{
		listingURL: u.String() + "/" + sort + ".json",
		origin:     u.Scheme + "://" + u.Host,
		limit:      limit,
		fetcher:    fetcher,
		resolver:   resolver,
	}, nil
}

func (p *RedditProvider) PullPage(ctx context.Context, cursor prefetch.Cursor) (prefetch.Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.limit))
	q.Set("raw_json", "1")
	if cursor != "" {
		q.Set("after", string(cursor))
	}

	resp, err := p.fetcher.Get(ctx, p.listingURL+"?"+q.Encode(), "application/json", Conditional{})
	if err != nil {
		return prefetch.Page{}, err
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return prefetch.Page{}, fmt.Errorf("decoding listing: %w", err)
	}

	page := prefetch.Page{
		Items:     make([]prefetch.Item, 0, len(listing.Data.Children)),
		Next:      prefetch.Cursor(listing.Data.After),
		Exhausted: listing.Data.After == "",
	}
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		page.Items = append(page.Items, p.convert(child.Data))
	}
	return page, nil
}

func (p *RedditProvider) convert(post redditPost) prefetch.Item {
	item := prefetch.Item{
		ID:        post.Name,
		Title:     strings.TrimSpace(post.Title),
		Author:    post.Author,
		Score:     post.Score,
		URL:       post.URL,
		Permalink: p.origin + post.Permalink,
		Body:      post.Selftext,
	}
	if post.IsSelf {
		// self posts link to their own comment page
		item.URL = ""
	}
	if post.CreatedUTC > 0 {
		item.Published = time.Unix(int64(post.CreatedUTC), 0).UTC()
	}
	return item
}

func (p *RedditProvider) Resolve(ctx context.Context, item *prefetch.Item) (prefetch.Payload, error) {
	return p.resolver.Resolve(ctx, item)
}
