package tui

type View int

const (
	// ViewPosts lists the feed's posts, with a preview of the focused one
	// when ui.immediate_posts is set.
	ViewPosts View = iota
	ViewReader
	ViewSwitchFeed
	ViewFeeds
	ViewDeleteConfirm
	ViewSearch
)
