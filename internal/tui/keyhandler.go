package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/search"
)

const searchFilter = "search"

type KeyHandler struct {
	app         *App
	config      *config.Config
	bindings    config.KeyBindings
	modifierKey string
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := ""
	if cfg.Keys.Modifier != "" {
		modifierKey = cfg.Keys.Modifier + "+"
	}
	return &KeyHandler{app: app, config: cfg, bindings: cfg.Keys.Bindings, modifierKey: modifierKey}
}

// key is the key string of an action binding, e.g. "ctrl+s".
func (kh *KeyHandler) key(binding string) string {
	return kh.modifierKey + binding
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	kh.app.err = nil

	if key == "ctrl+c" {
		return kh.app, tea.Quit
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if kh.app.view == ViewFeeds && kh.app.feedList.FilterState() == list.Filtering {
		// the list's own filter input owns the keyboard
		return kh.delegateToCharm(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewSwitchFeed:
		return kh.app.textInput.Focused()
	case ViewSearch:
		return kh.app.searchInput.Focused()
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return kh.navigateBack()
	case "enter":
		return kh.handleTextInputEnter()
	case "up", "down", "pgup", "pgdown":
		if kh.app.view == ViewSearch {
			// the filtered list stays navigable while typing
			return kh.delegateToCharm(msg)
		}
		return kh.delegateToTextInput(msg)
	default:
		return kh.delegateToTextInput(msg)
	}
}

func (kh *KeyHandler) handleTextInputEnter() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewSwitchFeed:
		input := strings.TrimSpace(kh.app.textInput.Value())
		if input == "" {
			return kh.app, nil
		}
		kh.app.textInput.Blur()
		kh.app.view = kh.app.previousView
		kh.app.opening = true
		kh.app.setStatus(MsgOpening, StatusInfo)
		return kh.app, kh.app.openFeed(input)

	case ViewSearch:
		// keep the filter and go back to browsing it
		kh.app.searchInput.Blur()
		kh.app.view = ViewPosts
		if kh.app.query == "" {
			kh.app.setStatus("", StatusInfo)
			return kh.app, nil
		}
		n := len(kh.app.session.Visible())
		if n == 0 {
			kh.app.setStatus(MsgNoResults, StatusWarn)
		} else {
			kh.app.setStatus(MsgResultsCount(n), StatusInfo)
		}
		return kh.app, nil

	default:
		return kh.app, nil
	}
}

// delegateToTextInput passes the key to the appropriate text input
func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch kh.app.view {
	case ViewSwitchFeed:
		kh.app.textInput, cmd = kh.app.textInput.Update(msg)
		return kh.app, cmd

	case ViewSearch:
		prev := kh.app.query
		kh.app.searchInput, cmd = kh.app.searchInput.Update(msg)
		if query := kh.sanitizeSearchInput(kh.app.searchInput.Value()); query != prev {
			kh.applySearch(query)
		}
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// applySearch installs the search filter for query, or removes it when the
// query is empty.
func (kh *KeyHandler) applySearch(query string) {
	app := kh.app
	app.query = query
	if app.session == nil {
		return
	}
	if query == "" {
		app.session.SetFilter(searchFilter, nil)
	} else {
		filter, err := app.index.Filter(query)
		if err != nil {
			debuglog.Warnf("search %q: %v", query, err)
			filter = search.MatchTerms(query)
		}
		app.session.SetFilter(searchFilter, filter)
	}
	app.syncPosts()
	app.session.Buffer()
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	b := kh.bindings

	// Global custom keys
	switch key {
	case b.Quit:
		return kh.app, tea.Quit, true
	case b.Back:
		if kh.app.showHelp {
			kh.app.showHelp = false
			return kh.app, nil, true
		}
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case b.Help:
		kh.app.showHelp = !kh.app.showHelp
		return kh.app, nil, true
	case kh.key(b.SwitchFeed):
		kh.app.previousView = kh.app.view
		kh.app.view = ViewSwitchFeed
		kh.app.textInput.Reset()
		return kh.app, kh.app.textInput.Focus(), true
	case kh.key(b.Feeds):
		kh.app.view = ViewFeeds
		return kh.app, kh.app.loadFeeds(), true
	}

	// View-specific custom keys
	switch kh.app.view {
	case ViewPosts:
		return kh.handlePostsCustomKeys(key)
	case ViewReader:
		return kh.handleReaderCustomKeys(key)
	case ViewFeeds:
		return kh.handleFeedsCustomKeys(key)
	case ViewDeleteConfirm:
		return kh.handleDeleteConfirmKeys(key)
	case ViewSearch:
		if key == kh.key(b.Search) || key == "/" {
			return kh.app, kh.app.searchInput.Focus(), true
		}
	}
	return kh.app, nil, false
}

// handleSessionKeys handles the actions shared by the posts and reader views.
func (kh *KeyHandler) handleSessionKeys(key string) (tea.Model, tea.Cmd, bool) {
	app, b := kh.app, kh.bindings
	if app.session == nil {
		if key == kh.key(b.Refresh) {
			return app, kh.refresh(), true
		}
		return app, nil, false
	}

	switch key {
	case kh.key(b.Search):
		model, cmd := kh.enterSearchMode()
		return model, cmd, true
	case kh.key(b.Refresh):
		return app, kh.refresh(), true
	case kh.key(b.Retry):
		item, ok := app.session.Focused()
		if !ok {
			return app, nil, true
		}
		if !app.session.Retry(app.session.Focus()) {
			// nothing cached yet, or the first fetch has not reported back
			app.setStatus(MsgLoading, StatusInfo)
			return app, nil, true
		}
		app.forget(item.Index)
		app.session.Buffer()
		app.reader = readerState{index: -1}
		app.setStatus(MsgRetrying, StatusInfo)
		return app, nil, true
	case kh.key(b.More):
		if app.session.More() {
			app.setStatus(MsgLoadingMore, StatusInfo)
		} else {
			app.setStatus(MsgNoMore, StatusWarn)
		}
		return app, nil, true
	case kh.key(b.OpenMedia):
		item, ok := app.session.Focused()
		if !ok {
			return app, nil, true
		}
		link := item.URL
		if link == "" {
			link = item.Permalink
		}
		if link == "" {
			return app, nil, true
		}
		return app, app.openURL(link), true
	}
	return app, nil, false
}

func (kh *KeyHandler) refresh() tea.Cmd {
	kh.app.opening = true
	kh.app.setStatus(MsgRefreshing, StatusInfo)
	return kh.app.openFeed(kh.app.source)
}

// handlePostsCustomKeys handles only custom action keys in the posts view
func (kh *KeyHandler) handlePostsCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	if key == "enter" {
		if kh.app.session == nil {
			return kh.app, nil, true
		}
		if _, ok := kh.app.session.Focused(); ok {
			kh.app.view = ViewReader
			kh.app.reader = readerState{index: -1}
			kh.app.refreshReader()
		}
		return kh.app, nil, true
	}
	return kh.handleSessionKeys(key)
}

// handleReaderCustomKeys handles only custom action keys in the reader view
func (kh *KeyHandler) handleReaderCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "n", "right":
		kh.app.moveFocus(1)
		kh.app.refreshReader()
		return kh.app, nil, true
	case "p", "left":
		kh.app.moveFocus(-1)
		kh.app.refreshReader()
		return kh.app, nil, true
	}
	return kh.handleSessionKeys(key)
}

func (kh *KeyHandler) handleFeedsCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	i, ok := kh.app.feedList.SelectedItem().(feedItem)
	if !ok {
		return kh.app, nil, false
	}
	switch key {
	case "enter":
		input := i.feed.URL
		if kh.app.offline {
			input = i.feed.ID
		}
		kh.app.view = ViewPosts
		kh.app.opening = true
		kh.app.setStatus(MsgOpening, StatusInfo)
		return kh.app, kh.app.openFeed(input), true
	case kh.key(kh.bindings.Delete):
		kh.app.feedToDelete = i.feed
		kh.app.view = ViewDeleteConfirm
		return kh.app, nil, true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleDeleteConfirmKeys(key string) (tea.Model, tea.Cmd, bool) {
	if key == "enter" && kh.app.feedToDelete != nil {
		kh.app.setStatus(MsgDeleting, StatusInfo)
		return kh.app, kh.app.deleteFeed(kh.app.feedToDelete.ID), true
	}
	return kh.app, nil, false
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch kh.app.view {
	case ViewPosts, ViewSearch:
		kh.app.postList, cmd = kh.app.postList.Update(msg)
		kh.app.focusChanged()
		return kh.app, cmd

	case ViewFeeds:
		kh.app.feedList, cmd = kh.app.feedList.Update(msg)
		return kh.app, cmd

	case ViewReader:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	app := kh.app
	switch app.view {
	case ViewSearch:
		app.searchInput.Reset()
		app.searchInput.Blur()
		kh.applySearch("")
		app.view = ViewPosts
		app.setStatus("", StatusInfo)
		return app, nil

	case ViewSwitchFeed:
		app.textInput.Blur()
		app.view = app.previousView
		return app, nil

	case ViewDeleteConfirm:
		app.view = ViewFeeds
		app.feedToDelete = nil
		return app, nil

	case ViewFeeds, ViewReader:
		app.view = ViewPosts
		return app, nil

	default:
		if app.query != "" {
			app.searchInput.Reset()
			kh.applySearch("")
			app.setStatus("", StatusInfo)
			return app, nil
		}
		return app, tea.Quit
	}
}

// enterSearchMode transitions to search view
func (kh *KeyHandler) enterSearchMode() (tea.Model, tea.Cmd) {
	app := kh.app
	app.previousView = app.view
	app.view = ViewSearch
	app.searchInput.SetValue(app.query)
	app.searchInput.CursorEnd()

	status := "Search"
	if ds, ok := app.index.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			status = fmt.Sprintf("Search • idx: %d", n)
		}
	}
	app.setStatus(status, StatusInfo)
	return app, app.searchInput.Focus()
}

// sanitizeSearchInput sanitizes and limits search input length
func (kh *KeyHandler) sanitizeSearchInput(input string) string {
	input = strings.TrimSpace(input)

	if len(input) > 256 {
		input = input[:256]
	}

	input = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(input)
	return strings.Join(strings.Fields(input), " ")
}

// GetHelpForCurrentView returns only our custom help text (Charm handles the rest)
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	b := kh.bindings
	switch kh.app.view {
	case ViewPosts:
		help := []string{"enter: read", kh.key(b.Search) + ": search", kh.key(b.SwitchFeed) + ": switch"}
		if kh.app.session != nil {
			help = append(help, kh.key(b.More)+": more", kh.key(b.OpenMedia)+": open")
		}
		return append(help, b.Help+": help")

	case ViewReader:
		return []string{"n/p: next/prev", kh.key(b.Retry) + ": retry", kh.key(b.OpenMedia) + ": open", b.Back + ": back"}

	case ViewSearch:
		return []string{"type to filter", "enter: keep", "esc: clear"}

	case ViewSwitchFeed:
		return []string{"enter: open", "esc: cancel"}

	case ViewFeeds:
		help := []string{"enter: open", "/: filter"}
		if len(kh.app.feeds) > 0 {
			help = append(help, kh.key(b.Delete)+": delete")
		}
		return append(help, b.Back+": back")

	case ViewDeleteConfirm:
		return []string{"enter: confirm", "esc: cancel"}

	default:
		return []string{}
	}
}

// AllBindings lists every configured binding for the help screen.
func (kh *KeyHandler) AllBindings() []string {
	b := kh.bindings
	rows := [][2]string{
		{"↑/↓", "move focus"},
		{"enter", "read post"},
		{"n/p", "next/previous post in reader"},
		{kh.key(b.Search), "filter posts"},
		{kh.key(b.SwitchFeed), "open another feed"},
		{kh.key(b.Feeds), "archived feeds"},
		{kh.key(b.Refresh), "reload feed"},
		{kh.key(b.Retry), "fetch focused post again"},
		{kh.key(b.More), "load more posts"},
		{kh.key(b.OpenMedia), "open link externally"},
		{kh.key(b.Delete), "delete archived feed"},
		{b.Back, "back"},
		{b.Help, "toggle help"},
		{b.Quit, "quit"},
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%-12s %s", r[0], r[1])
	}
	return lines
}
