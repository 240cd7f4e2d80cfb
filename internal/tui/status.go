package tui

import (
	"fmt"
	"strings"

	"github.com/pders01/skim/internal/prefetch"
)

// Canonical short status messages used across the app.
const (
	MsgOpening     = "Opening feed…"
	MsgRefreshing  = "Refreshing…"
	MsgRetrying    = "Retrying…"
	MsgLoadingMore = "Loading more posts…"
	MsgNoMore      = "No more posts"
	MsgDeleting    = "Deleting…"
	MsgFeedDeleted = "Feed deleted"
	MsgNoResults   = "No results"
	MsgLoading     = "Loading…"
	MsgNoPosts     = "No posts yet"
)

func MsgOpened(title string) string {
	return fmt.Sprintf("Opened '%s'", strings.TrimSpace(title))
}

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

// MsgStats summarises the session for the right side of the status bar.
func MsgStats(st prefetch.Stats, capacity int) string {
	parts := []string{fmt.Sprintf("%d posts", st.Visible)}
	if st.Visible != st.Items {
		parts[0] = fmt.Sprintf("%d/%d posts", st.Visible, st.Items)
	}
	if st.InFlight > 0 {
		parts = append(parts, fmt.Sprintf("%d loading", st.InFlight))
	}
	parts = append(parts, fmt.Sprintf("cache %d/%d", st.Cached, capacity))
	switch {
	case st.Stalled:
		parts = append(parts, "paused")
	case st.Exhausted:
		parts = append(parts, "end")
	}
	return strings.Join(parts, " • ")
}
