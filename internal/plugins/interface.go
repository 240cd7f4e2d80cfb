package plugins

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names stored in FeedInfo.Metadata["provider"].
const (
	ProviderRSS    = "rss"
	ProviderReddit = "reddit"
)

// FeedInfo describes how to read what the user asked for.
type FeedInfo struct {
	// Original input, e.g. "r/rust" or a blog URL
	OriginalURL string
	// URL the provider reads from
	FeedURL     string
	Title       string
	Description string
	// Metadata carries provider specific settings. "provider" is always set.
	Metadata map[string]string
}

func (f *FeedInfo) Provider() string {
	if f == nil || f.Metadata == nil {
		return ""
	}
	return f.Metadata["provider"]
}

// Plugin recognises one kind of input and turns it into a FeedInfo.
type Plugin interface {
	Name() string

	// CanHandle returns true if this plugin can handle the given input
	CanHandle(input string) bool

	// EnhanceFeed may make HTTP requests, e.g. to discover a feed link.
	EnhanceFeed(ctx context.Context, input string, client *http.Client) (*FeedInfo, error)

	// Priority orders plugins that can handle the same input (higher wins).
	Priority() int
}

type Registry struct {
	plugins []Plugin
	client  *http.Client
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		plugins: make([]Plugin, 0),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *Registry) Register(plugin Plugin) {
	r.plugins = append(r.plugins, plugin)
}

// FindPlugin returns the highest priority plugin that can handle input.
func (r *Registry) FindPlugin(input string) Plugin {
	var bestPlugin Plugin
	highestPriority := -1

	for _, plugin := range r.plugins {
		if plugin.CanHandle(input) && plugin.Priority() > highestPriority {
			bestPlugin = plugin
			highestPriority = plugin.Priority()
		}
	}

	return bestPlugin
}

// EnhanceFeed resolves input with the best plugin. Without one the input is
// treated as a plain RSS or Atom URL.
func (r *Registry) EnhanceFeed(ctx context.Context, input string) (*FeedInfo, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("no feed given")
	}

	plugin := r.FindPlugin(input)
	if plugin == nil {
		return &FeedInfo{
			OriginalURL: input,
			FeedURL:     input,
			Metadata:    map[string]string{"provider": ProviderRSS},
		}, nil
	}

	info, err := plugin.EnhanceFeed(ctx, input, r.client)
	if err != nil {
		return nil, fmt.Errorf("%s plugin: %w", plugin.Name(), err)
	}
	if info.Metadata == nil {
		info.Metadata = make(map[string]string)
	}
	if info.Metadata["provider"] == "" {
		info.Metadata["provider"] = ProviderRSS
	}
	info.Metadata["plugin"] = plugin.Name()
	return info, nil
}

func (r *Registry) ListPlugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}
