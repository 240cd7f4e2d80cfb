package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/skim/internal/config"
	"github.com/pders01/skim/internal/debuglog"
	"github.com/pders01/skim/internal/prefetch"
	"github.com/pders01/skim/internal/search"
	"github.com/pders01/skim/internal/storage"
)

// Library opens feeds and manages the stored ones. *feed.Manager implements it.
type Library interface {
	Open(ctx context.Context, input string) (prefetch.Provider, *storage.Feed, error)
	OpenArchived(input string) (prefetch.Provider, *storage.Feed, error)
	Feeds() ([]*storage.Feed, error)
	DeleteFeed(id string) error
}

// Launcher opens links in external applications.
type Launcher interface {
	Open(rawURL string) error
}

type Options struct {
	// Source is the feed opened at startup. Empty means the configured
	// default, or the first archived feed when Offline is set.
	Source  string
	Offline bool
}

// renderKey identifies a rendered content block. Rendering depends on the
// size of the pane it is drawn into.
type renderKey struct {
	index         prefetch.Index
	width, height int
}

// readerState is what the reader viewport currently shows.
type readerState struct {
	index prefetch.Index
	state prefetch.EntryState
	width int
}

type App struct {
	ctx      context.Context
	config   *config.Config
	library  Library
	index    search.Searcher
	launcher Launcher
	offline  bool
	source   string

	// session is nil until the first feed has been opened.
	session *prefetch.Session

	keyHandler  *KeyHandler
	postList    list.Model
	feedList    list.Model
	textInput   textinput.Model
	searchInput textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model

	view         View
	previousView View
	currentFeed  *storage.Feed
	feeds        []*storage.Feed
	feedToDelete *storage.Feed
	query        string
	postsDirty   bool
	opening      bool
	showHelp     bool

	rendered map[renderKey]string
	reader   readerState

	width      int
	height     int
	err        error
	status     string
	statusKind StatusKind

	glamourRenderer *glamour.TermRenderer
	rendererWidth   int
}

func NewApp(ctx context.Context, cfg *config.Config, library Library, index search.Searcher, launcher Launcher, opts Options) *App {
	postList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	postList.Title = "› posts"
	postList.SetShowTitle(cfg.UI.ShowTitleBars)
	postList.SetShowStatusBar(false)
	postList.SetFilteringEnabled(false)
	postList.SetShowHelp(false)

	feedList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	feedList.Title = "› archived feeds"
	feedList.SetShowTitle(cfg.UI.ShowTitleBars)
	feedList.SetShowStatusBar(false)
	feedList.SetFilteringEnabled(true)
	feedList.SetShowHelp(false)

	ti := textinput.New()
	ti.Placeholder = "r/golang, a feed URL or a site address..."
	ti.CharLimit = 2048

	si := textinput.New()
	si.Placeholder = "Filter posts..."
	si.CharLimit = 256

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	source := opts.Source
	if source == "" && !opts.Offline {
		source = cfg.Feed.Source
	}

	app := &App{
		ctx:          ctx,
		config:       cfg,
		library:      library,
		index:        index,
		launcher:     launcher,
		offline:      opts.Offline,
		source:       source,
		postList:     postList,
		feedList:     feedList,
		textInput:    ti,
		searchInput:  si,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		view:         ViewPosts,
		previousView: ViewPosts,
		rendered:     make(map[renderKey]string),
	}
	app.keyHandler = NewKeyHandler(app, cfg)

	return app
}

// getRenderer returns a glamour renderer wrapping at a readable width for a
// pane that is width cells wide.
func (a *App) getRenderer(width int) (*glamour.TermRenderer, error) {
	article := a.config.UI.Article
	wordWrapWidth := min((width*9)/10, article.WordWrapMaxWidth)
	wordWrapWidth = max(wordWrapWidth, article.WordWrapMinWidth)
	if width < 50 {
		wordWrapWidth = max(width-4, 20)
	}

	if a.glamourRenderer == nil || a.rendererWidth != wordWrapWidth {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func (a *App) Init() tea.Cmd {
	a.opening = true
	a.setStatus(MsgOpening, StatusInfo)
	return tea.Batch(
		a.openFeed(a.source),
		a.tick(),
		a.spinner.Tick,
	)
}

// Close stops the session's background work.
func (a *App) Close() {
	if a.session != nil {
		a.session.Close()
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case tickMsg:
		if a.session != nil {
			a.session.Tick()
			if a.postsDirty {
				a.syncPosts()
			}
			a.refreshReader()
		}
		return a, a.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case feedOpenedMsg:
		a.opening = false
		if err := a.attach(msg); err != nil {
			a.setError(err)
			return a, nil
		}
		a.setStatus(MsgOpened(feedTitle(msg.feed)), StatusSuccess)

	case feedsLoadedMsg:
		a.feeds = msg.feeds
		items := make([]list.Item, len(msg.feeds))
		for i, f := range msg.feeds {
			items[i] = feedItem{feed: f}
		}
		cmds = append(cmds, a.feedList.SetItems(items))

	case feedDeletedMsg:
		if msg.err != nil {
			a.setError(msg.err)
		} else {
			a.view = ViewFeeds
			a.feedToDelete = nil
			a.setStatus(MsgFeedDeleted, StatusSuccess)
			return a, a.loadFeeds()
		}

	case statusMsg:
		a.setStatus(msg.text, msg.kind)

	case errorMsg:
		a.opening = false
		a.setError(msg.err)
	}

	switch a.view {
	case ViewFeeds:
		var cmd tea.Cmd
		a.feedList, cmd = a.feedList.Update(msg)
		cmds = append(cmds, cmd)
	case ViewReader:
		switch msg.(type) {
		case tea.WindowSizeMsg, tea.MouseMsg:
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

// attach installs the provider of a freshly opened feed. The first feed
// creates the session; later ones replace its provider so in-flight results
// of the old feed are discarded.
func (a *App) attach(msg feedOpenedMsg) error {
	if a.session == nil {
		s, err := prefetch.NewSession(a.ctx, msg.provider, a.config.PrefetchOptions())
		if err != nil {
			return wrapErr("starting session", err)
		}
		s.OnAppend(a.onAppend)
		a.session = s
	} else {
		a.session.Replace(msg.provider)
	}

	if err := a.index.Reset(); err != nil {
		debuglog.Warnf("resetting search index: %v", err)
	}
	a.session.ClearFilters()
	a.query = ""
	a.searchInput.Reset()
	clear(a.rendered)
	a.reader = readerState{index: -1}

	a.currentFeed = msg.feed
	a.source = msg.input
	a.postList.Title = "› " + feedTitle(msg.feed)
	a.postsDirty = true
	a.view = ViewPosts
	a.previousView = ViewPosts
	return nil
}

func (a *App) onAppend(items []*prefetch.Item) {
	if err := a.index.Add(items); err != nil {
		debuglog.Warnf("indexing %d items: %v", len(items), err)
	}
	a.postsDirty = true
}

// syncPosts rebuilds the post list from the session's visible sequence.
func (a *App) syncPosts() {
	a.postsDirty = false
	visible := a.session.Visible()
	items := make([]list.Item, len(visible))
	for i, it := range visible {
		items[i] = postItem{item: it}
	}
	a.postList.SetItems(items)
	a.postList.Select(a.session.Focus())

	if len(a.rendered) > a.config.Cache.Capacity {
		clear(a.rendered)
	}
}

// focusChanged mirrors the list cursor into the session and dispatches the
// new window right away instead of waiting for the next tick.
func (a *App) focusChanged() {
	if a.session == nil {
		return
	}
	a.session.SetFocus(a.postList.Index())
	a.session.Buffer()
}

// moveFocus shifts the focus by delta and keeps the list cursor in step.
func (a *App) moveFocus(delta int) {
	if a.session == nil {
		return
	}
	a.session.Move(delta)
	a.postList.Select(a.session.Focus())
	a.session.Buffer()
}

// forget drops rendered output for an item whose content is fetched again.
func (a *App) forget(index prefetch.Index) {
	for k := range a.rendered {
		if k.index == index {
			delete(a.rendered, k)
		}
	}
}

func (a *App) layout() {
	bodyHeight := max(a.height-2, 1)
	a.postList.SetSize(a.listWidth(), bodyHeight)
	a.feedList.SetSize(a.width, bodyHeight)
	a.viewport.Width = a.width
	a.viewport.Height = bodyHeight

	inputWidth := a.width - 8
	if inputWidth < 20 {
		inputWidth = a.width
	}
	a.textInput.Width = inputWidth
	a.searchInput.Width = inputWidth
	a.reader = readerState{index: -1}
}

func (a *App) bodyHeight() int {
	return max(a.height-2, 1)
}

// listWidth leaves room for the preview pane when posts render on highlight.
func (a *App) listWidth() int {
	if a.config.UI.ImmediatePosts {
		return max(a.width*2/5, 20)
	}
	return a.width
}

func (a *App) setStatus(text string, kind StatusKind) {
	a.status = text
	a.statusKind = kind
}

func (a *App) setError(err error) {
	debuglog.Errorf("%v", err)
	a.err = err
}

func (a *App) View() string {
	var content string

	switch {
	case a.showHelp:
		content = a.helpView()
	default:
		content = a.bodyView()
	}

	separator := SeparatorStyle.Render(strings.Repeat("─", max(a.width, 0)))
	return lipgloss.JoinVertical(lipgloss.Left, content, separator, a.statusBar())
}

func (a *App) bodyView() string {
	height := a.bodyHeight()

	switch a.view {
	case ViewPosts:
		if a.session == nil || len(a.postList.Items()) == 0 {
			hint := MsgNoPosts
			if a.opening {
				hint = MsgOpening
			}
			return centerIn(a.width, height, GetWelcomeMessage(hint))
		}
		if !a.config.UI.ImmediatePosts {
			return a.postList.View()
		}
		previewWidth := max(a.width-a.listWidth()-1, 10)
		preview := lipgloss.NewStyle().
			Width(previewWidth).
			MaxHeight(height).
			Render(a.focusedView(previewWidth, height))
		return lipgloss.JoinHorizontal(lipgloss.Top, a.postList.View(), " ", preview)

	case ViewReader:
		return a.viewport.View()

	case ViewFeeds:
		if len(a.feeds) == 0 {
			return centerIn(a.width, height, muted("No archived feeds"))
		}
		return a.feedList.View()

	case ViewSwitchFeed:
		return centerIn(a.width, height, lipgloss.JoinVertical(
			lipgloss.Center,
			TitleStyle.Render("› switch feed"),
			"",
			inputBox(a.textInput.View(), a.textInput.Focused(), a.textInput.Width),
			"",
			helpLine("Enter: open • Esc: cancel"),
		))

	case ViewDeleteConfirm:
		return a.deleteConfirmView(height)

	case ViewSearch:
		header := postHeader("› filter posts", feedTitle(a.currentFeed), a.width)
		input := inputBox(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width)
		chrome := lipgloss.JoinVertical(lipgloss.Left, header, input)
		listHeight := max(height-lipgloss.Height(chrome), 3)
		a.postList.SetHeight(listHeight)
		body := lipgloss.JoinVertical(lipgloss.Left, chrome, a.postList.View())
		a.postList.SetHeight(height)
		return lipgloss.NewStyle().MaxHeight(height).Render(body)
	}

	return ""
}

func (a *App) deleteConfirmView(height int) string {
	modalWidth := max((a.width*4)/5, min(a.width, 15))
	feedName := truncateMiddle(feedTitle(a.feedToDelete), modalWidth-4)

	centered := lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center)
	return centerIn(a.width, height, lipgloss.JoinVertical(
		lipgloss.Center,
		ErrorMessageStyle.Render("⚠ Delete Feed"),
		"",
		centered.Foreground(TextColor).Render("Delete this feed and its archived posts?"),
		"",
		centered.Foreground(HighlightColor).Bold(true).Render(feedName),
		"",
		helpLine("Enter: confirm • Esc: cancel"),
	))
}

func (a *App) helpView() string {
	rows := []string{HeaderStyle.Render("› keys"), ""}
	rows = append(rows, a.keyHandler.AllBindings()...)
	rows = append(rows, "", helpLine("Press "+a.config.Keys.Bindings.Help+" to close"))
	return centerIn(a.width, a.bodyHeight(), lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a *App) statusBar() string {
	var (
		text  string
		style lipgloss.Style
	)
	switch {
	case a.err != nil:
		text, style = "✗ "+a.err.Error(), ErrorMessageStyle
	case a.status != "":
		text, style = a.status, a.statusKind.style()
	default:
		text = strings.Join(a.keyHandler.GetHelpForCurrentView(), " • ")
		style = lipgloss.NewStyle().Foreground(MutedColor)
	}

	var right string
	if a.session != nil {
		right = muted(MsgStats(a.session.Stats(), a.config.Cache.Capacity))
		if a.session.Busy() || a.opening {
			right = a.spinner.View() + " " + right
		}
	} else if a.opening {
		right = a.spinner.View()
	}

	available := a.width - 2
	text = truncateEnd(text, max(available-lipgloss.Width(right)-1, 0))
	left := style.Render(text)
	gap := max(available-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return StatusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func feedTitle(f *storage.Feed) string {
	if f == nil {
		return "Unknown Feed"
	}
	if f.Title != "" {
		return f.Title
	}
	return f.URL
}

type postItem struct {
	item *prefetch.Item
}

func (i postItem) Title() string {
	if i.item.Title == "" {
		return "(untitled)"
	}
	return i.item.Title
}

func (i postItem) Description() string { return metaLine(i.item) }
func (i postItem) FilterValue() string { return i.item.Title }

type feedItem struct {
	feed *storage.Feed
}

func (i feedItem) Title() string { return feedTitle(i.feed) }

func (i feedItem) Description() string {
	desc := i.feed.Provider
	if i.feed.Description != "" {
		desc += " • " + i.feed.Description
	}
	return desc
}

func (i feedItem) FilterValue() string { return i.feed.Title + " " + i.feed.URL }

type tickMsg struct{}

type feedOpenedMsg struct {
	provider prefetch.Provider
	feed     *storage.Feed
	input    string
}

type feedsLoadedMsg struct {
	feeds []*storage.Feed
}

type feedDeletedMsg struct {
	id  string
	err error
}

type statusMsg struct {
	text string
	kind StatusKind
}

type errorMsg struct {
	err error
}
