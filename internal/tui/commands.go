package tui

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/skim/internal/feed"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/storage"
)

// tick schedules the next frame. Frames are fast while background work is
// outstanding and slow otherwise.
func (a *App) tick() tea.Cmd {
	d := a.config.UI.IdleInterval
	if a.session != nil && a.session.Busy() {
		d = a.config.UI.FrameInterval
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{} })
}

// openFeed resolves input into a provider off the UI goroutine. Offline,
// input names an archived feed instead.
func (a *App) openFeed(input string) tea.Cmd {
	offline := a.offline
	return func() tea.Msg {
		var (
			provider prefetch.Provider
			f        *storage.Feed
			err      error
		)
		if offline {
			provider, f, err = a.library.OpenArchived(input)
		} else {
			provider, f, err = a.library.Open(a.ctx, input)
		}
		if err != nil {
			name := input
			if name == "" {
				name = "archived feed"
			}
			return errorMsg{err: wrapErr("opening "+name, err)}
		}
		return feedOpenedMsg{provider: provider, feed: f, input: input}
	}
}

func (a *App) loadFeeds() tea.Cmd {
	return func() tea.Msg {
		var feeds []*storage.Feed
		err := retryOperation(func() error {
			var err error
			feeds, err = a.library.Feeds()
			return err
		})
		if errors.Is(err, feed.ErrNoArchive) {
			return feedsLoadedMsg{}
		}
		if err != nil {
			return errorMsg{err: wrapErr("loading feeds", err)}
		}
		return feedsLoadedMsg{feeds: feeds}
	}
}

func (a *App) deleteFeed(feedID string) tea.Cmd {
	return func() tea.Msg {
		err := retryOperation(func() error { return a.library.DeleteFeed(feedID) })
		return feedDeletedMsg{id: feedID, err: err}
	}
}

// wrapErr prefixes err with what the UI was doing.
func wrapErr(doing string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", doing, err)
}

func (a *App) openURL(url string) tea.Cmd {
	return func() tea.Msg {
		if a.launcher == nil {
			return errorMsg{err: fmt.Errorf("no launcher configured")}
		}
		if err := a.launcher.Open(url); err != nil {
			return errorMsg{err: fmt.Errorf("failed to open %s: %w", url, err)}
		}
		return statusMsg{text: "Opened " + truncateMiddle(url, 60), kind: StatusSuccess}
	}
}

// retryOperation retries a database operation up to 3 times with exponential
// backoff. bbolt returns a timeout while another process holds the file.
func retryOperation(operation func() error) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := operation()
		if err == nil {
			return nil
		}
		if errors.Is(err, feed.ErrNoArchive) {
			return err
		}
		lastErr = err
		if i < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<i))
		}
	}
	return lastErr
}
