package user

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pders01/skim/internal/plugins"
)

var (
	subredditName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]{1,20}$`)
	redditSorts   = map[string]bool{"hot": true, "new": true, "top": true, "rising": true, "controversial": true}
)

// RedditPlugin turns "r/<name>" shorthands and subreddit URLs into a reddit
// listing feed read through the JSON API.
type RedditPlugin struct {
	// DefaultSort applies when the input does not name a sort order.
	DefaultSort string
}

func NewRedditPlugin(defaultSort string) *RedditPlugin {
	if !redditSorts[defaultSort] {
		defaultSort = "hot"
	}
	return &RedditPlugin{DefaultSort: defaultSort}
}

func (p *RedditPlugin) Name() string {
	return "reddit"
}

func (p *RedditPlugin) CanHandle(input string) bool {
	_, _, ok := parseSubreddit(input)
	return ok
}

func (p *RedditPlugin) Priority() int {
	return 50
}

func (p *RedditPlugin) EnhanceFeed(_ context.Context, input string, _ *http.Client) (*plugins.FeedInfo, error) {
	subreddit, sort, ok := parseSubreddit(input)
	if !ok {
		return nil, fmt.Errorf("not a subreddit: %q", input)
	}
	if sort == "" {
		sort = p.DefaultSort
	}

	return &plugins.FeedInfo{
		OriginalURL: input,
		FeedURL:     "https://www.reddit.com/r/" + subreddit,
		Title:       "r/" + subreddit,
		Description: "Posts from r/" + subreddit + " sorted by " + sort,
		Metadata: map[string]string{
			"provider":  plugins.ProviderReddit,
			"subreddit": subreddit,
			"sort":      sort,
		},
	}, nil
}

// parseSubreddit accepts "r/rust", "/r/rust/new" and reddit.com URLs.
func parseSubreddit(input string) (subreddit, sort string, ok bool) {
	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)

	var path string
	switch {
	case strings.HasPrefix(lower, "r/"), strings.HasPrefix(lower, "/r/"):
		path = "/" + strings.TrimPrefix(input, "/")
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(input)
		if err != nil {
			return "", "", false
		}
		host := strings.ToLower(u.Hostname())
		if host != "reddit.com" && !strings.HasSuffix(host, ".reddit.com") {
			return "", "", false
		}
		path = u.Path
	default:
		return "", "", false
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "r" || !subredditName.MatchString(parts[1]) {
		return "", "", false
	}
	if len(parts) >= 3 {
		s := strings.TrimSuffix(strings.ToLower(parts[2]), ".rss")
		if redditSorts[s] {
			sort = s
		} else if s != "" {
			// comment threads and wiki pages are not listings
			return "", "", false
		}
	}
	return parts[1], sort, true
}
