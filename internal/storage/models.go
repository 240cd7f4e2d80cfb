package storage

import (
	"time"
)

type Feed struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Provider names the plugin that produced the feed, e.g. "reddit" or "rss".
	Provider     string    `json:"provider"`
	LastFetched  time.Time `json:"last_fetched"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Item is an archived feed entry. Seq is its position in the feed's archive,
// assigned on append.
type Item struct {
	ID        string    `json:"id"`
	FeedID    string    `json:"feed_id"`
	Seq       uint64    `json:"seq"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Score     int       `json:"score"`
	URL       string    `json:"url"`
	Permalink string    `json:"permalink"`
	Body      string    `json:"body"`
	Published time.Time `json:"published"`
	Archived  time.Time `json:"archived"`
}
